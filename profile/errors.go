package profile

import "github.com/pkg/errors"

// Solver failures. Every one of them leaves the caller's current trajectory
// untouched; the planner decides whether to keep executing it.
var (
	ErrInvalidInput               = errors.New("invalid solver input")
	ErrDurationOverflow           = errors.New("trajectory duration exceeds numerical limits")
	ErrPositionalLimits           = errors.New("trajectory leaves the positional limits")
	ErrZeroLimits                 = errors.New("velocity window is empty but motion is required")
	ErrExecutionTimeCalculation   = errors.New("could not calculate an execution time")
	ErrSynchronizationCalculation = errors.New("phase endpoints do not meet the target state")
	ErrUnknown                    = errors.New("unknown solver result")
)
