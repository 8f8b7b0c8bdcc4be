package planner

import (
	"log/slog"
	"math"
)

// Sample is the commanded state for one servo cycle.
type Sample struct {
	Position     float64 `json:"position"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
	Jerk         float64 `json:"jerk"`
}

// Sample evaluates the active trajectory at t seconds after the plan. Times
// past the end return the terminal state. Jerk is the change of acceleration
// since the previous sample over one cycle.
func (p *Planner) Sample(t float64) (Sample, error) {
	tr, err := p.active()
	if err != nil {
		return Sample{}, err
	}
	if !(t >= 0) {
		return Sample{}, ErrNegativeTime
	}

	tol := p.tolerances
	prof := &tr.profile
	st := prof.At(t)
	done := t >= prof.Duration

	posErr := st.Position - tr.target.Position
	velErr := st.Velocity - tr.target.Velocity
	accErr := st.Acceleration - tr.target.Acceleration

	switch tr.mode {
	case PositionControl:
		if done || t >= prof.Duration-tol.window(prof.Duration, p.cycleTime) {
			if math.Abs(posErr) < tol.PositionSnap {
				st.Position = tr.target.Position
				posErr = 0
			}
			// mid-trajectory velocity errors stay, snapping them would dent the curve
			if done {
				if math.Abs(velErr) < tol.VelocitySnap {
					st.Velocity = tr.target.Velocity
					velErr = 0
				}
				if math.Abs(accErr) < tol.AccelerationSnap {
					st.Acceleration = tr.target.Acceleration
				}
			}
		}
	case VelocityControl:
		if done && math.Abs(velErr) < tol.VelocitySnap && math.Abs(accErr) < tol.AccelerationSnap {
			st.Velocity = tr.target.Velocity
			st.Acceleration = tr.target.Acceleration
			velErr = 0
		}
	}

	jerk := (st.Acceleration - tr.lastSampledAcceleration) / p.cycleTime
	if done {
		converged := math.Abs(posErr) <= tol.PositionSnap
		if tr.mode == VelocityControl {
			converged = math.Abs(velErr) <= tol.VelocitySnap
		}
		if converged && math.Abs(st.Acceleration) <= tol.AccelerationZero {
			st.Acceleration = 0
			jerk = 0
		}
	}

	if tr.firstCycleAfterReplan && p.logging {
		slog.Debug("first sample after replan", "time", t, "carried_acceleration", tr.lastSampledAcceleration,
			"acceleration", st.Acceleration, "jerk", jerk)
	}
	tr.lastSampledAcceleration = st.Acceleration
	tr.firstCycleAfterReplan = false

	return Sample{
		Position:     st.Position,
		Velocity:     st.Velocity,
		Acceleration: st.Acceleration,
		Jerk:         jerk,
	}, nil
}

// LastSampledAcceleration is the acceleration most recently handed out by
// Sample, or the seed from the first plan.
func (p *Planner) LastSampledAcceleration() float64 {
	return p.traj.lastSampledAcceleration
}
