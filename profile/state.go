package profile

import (
	m "pfeifer.dev/scurve/math"
)

// State is the kinematic state of a single coordinate.
type State struct {
	Position     float64 `json:"position"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
}

// Integrate advances s by t seconds under constant jerk.
func (s State) Integrate(t, jerk float64) State {
	return State{
		Position:     s.Position + m.Distance(t, s.Velocity, s.Acceleration, jerk),
		Velocity:     s.Velocity + m.Velocity(t, s.Acceleration, jerk),
		Acceleration: s.Acceleration + m.Acceleration(t, jerk),
	}
}

// Limits bound a profile. MinVelocity is the lowest allowed (usually negative
// or zero) velocity; the remaining limits are magnitudes.
type Limits struct {
	MinVelocity     float64 `json:"min_velocity"`
	MaxVelocity     float64 `json:"max_velocity"`
	MaxAcceleration float64 `json:"max_acceleration"`
	MaxJerk         float64 `json:"max_jerk"`
}

// Bounds is an optional positional window a position profile must stay in.
type Bounds struct {
	Enabled bool    `json:"enabled"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

func (b Bounds) contains(lo, hi float64) bool {
	if !b.Enabled {
		return true
	}
	tol := boundsEpsilon * (1 + max(abs(b.Min), abs(b.Max)))
	return lo >= b.Min-tol && hi <= b.Max+tol
}
