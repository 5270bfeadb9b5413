package host

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
)

// ExitRecord describes how one process ended.
type ExitRecord struct {
	ID         uuid.UUID `json:"id"`
	PID        int64     `json:"pid"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	Floats     []float64 `json:"floats"`
	Text       string    `json:"text"`
	Output     []string  `json:"output,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewExitRecord builds a record stamped with a fresh id and the current time.
func NewExitRecord(pid int64, state processmgr.ProcessState, floats []float64, text string) ExitRecord {
	if floats == nil {
		floats = []float64{}
	}
	return ExitRecord{
		ID:         uuid.New(),
		PID:        pid,
		State:      state.Kind.String(),
		Reason:     state.Reason,
		Floats:     floats,
		Text:       text,
		FinishedAt: time.Now().UTC(),
	}
}

// Recorder persists exit records.
type Recorder interface {
	Record(ctx context.Context, rec ExitRecord) error
}
