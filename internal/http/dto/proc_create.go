package dto

import (
	"errors"

	"github.com/edirooss/scriptd/internal/service"
	"github.com/edirooss/scriptd/pkg/jsonx"
)

// ProcCreate is the DTO for starting a process via POST /api/procs.
type ProcCreate struct {
	Source     string             `json:"source"`      // required; assembler source
	Entry      string             `json:"entry"`       // optional; label (default: "main", else first instruction)
	Name       string             `json:"name"`        // optional; free-form
	CycleLimit jsonx.Field[int64] `json:"cycle_limit"` // optional; int64 | null (default: unlimited)
	MaxStack   jsonx.Field[int]   `json:"max_stack"`   // optional; int | null   (default: 256)
}

// ToExecRequest validates the body and fills defaults.
func (req *ProcCreate) ToExecRequest() (service.ExecRequest, error) {
	out := service.ExecRequest{
		Source: req.Source,
		Entry:  req.Entry,
		Name:   req.Name,
	}
	if req.Source == "" {
		return out, errors.New("source is required")
	}
	if v := req.CycleLimit.Value(); v != nil {
		if *v < 0 {
			return out, errors.New("cycle_limit must be >= 0")
		}
		out.CycleLimit = *v
	}
	if v := req.MaxStack.Value(); v != nil {
		if *v < 0 {
			return out, errors.New("max_stack must be >= 0")
		}
		out.MaxStack = *v
	}
	return out, nil
}

// ProcStatus is the body of GET /api/procs/:pid.
type ProcStatus struct {
	PID    int64  `json:"pid"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
	Cycles int64  `json:"cycles"`
}
