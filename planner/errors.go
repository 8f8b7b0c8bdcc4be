package planner

import (
	"github.com/pkg/errors"
	"pfeifer.dev/scurve/profile"
)

var (
	ErrInvalidCycleTime   = errors.New("cycle time must be positive and finite")
	ErrInvalidLimits      = errors.New("velocity, acceleration and jerk limits must be positive")
	ErrNotPlanned         = errors.New("no trajectory planned")
	ErrNegativeTime       = errors.New("sample time is negative")
	ErrClosed             = errors.New("planner is closed")
	ErrPositionNotReached = errors.New("trajectory does not reach the position")
)

// Kind classifies a planner error. Callers switch on it instead of matching
// sentinels one by one.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidCycleTime
	KindInvalidLimits
	KindInvalidInput
	KindDurationOverflow
	KindPositionalLimits
	KindZeroLimits
	KindExecutionTimeCalculation
	KindSynchronizationCalculation
	KindUnknown
	KindNotPlanned
	KindNegativeTime
	KindClosed
	KindPositionNotReached
)

var kindNames = map[Kind]string{
	KindNone:                       "none",
	KindInvalidCycleTime:           "invalid_cycle_time",
	KindInvalidLimits:              "invalid_limits",
	KindInvalidInput:               "invalid_input",
	KindDurationOverflow:           "duration_overflow",
	KindPositionalLimits:           "positional_limits",
	KindZeroLimits:                 "zero_limits",
	KindExecutionTimeCalculation:   "execution_time_calculation",
	KindSynchronizationCalculation: "synchronization_calculation",
	KindUnknown:                    "unknown",
	KindNotPlanned:                 "not_planned",
	KindNegativeTime:               "negative_time",
	KindClosed:                     "closed",
	KindPositionNotReached:         "position_not_reached",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidCycleTime, KindInvalidCycleTime},
	{ErrInvalidLimits, KindInvalidLimits},
	{ErrNotPlanned, KindNotPlanned},
	{ErrNegativeTime, KindNegativeTime},
	{ErrClosed, KindClosed},
	{ErrPositionNotReached, KindPositionNotReached},
	{profile.ErrInvalidInput, KindInvalidInput},
	{profile.ErrDurationOverflow, KindDurationOverflow},
	{profile.ErrPositionalLimits, KindPositionalLimits},
	{profile.ErrZeroLimits, KindZeroLimits},
	{profile.ErrExecutionTimeCalculation, KindExecutionTimeCalculation},
	{profile.ErrSynchronizationCalculation, KindSynchronizationCalculation},
	{profile.ErrUnknown, KindUnknown},
}

// KindOf returns the kind of err, KindNone for nil and KindUnknown for errors
// that did not come from this package or the solver.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Code maps err to the integer result used by the servo loop: 0 on success,
// -2 when the execution time could not be calculated and -1 otherwise.
func Code(err error) int {
	switch KindOf(err) {
	case KindNone:
		return 0
	case KindExecutionTimeCalculation:
		return -2
	}
	return -1
}
