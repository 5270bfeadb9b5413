package dto

import (
	"errors"

	"github.com/edirooss/scriptd/pkg/jsonx"
)

// LimitsUpdate is the body of PUT /api/limits.
type LimitsUpdate struct {
	MaxProcs jsonx.Field[int64] `json:"max_procs"` // required; int64 >= 0
}

// MaxProcsValue validates the body and returns the new limit.
func (req *LimitsUpdate) MaxProcsValue() (int64, error) {
	if !req.MaxProcs.IsSet() || req.MaxProcs.IsNull() {
		return 0, errors.New("max_procs is required")
	}
	n := req.MaxProcs.Or(0)
	if n < 0 {
		return 0, errors.New("max_procs must be >= 0")
	}
	return n, nil
}
