package profile

import (
	"math"

	m "pfeifer.dev/scurve/math"
)

// Control selects what the end of a profile is constrained to.
type Control int

const (
	// PositionControl ends at a position, velocity and acceleration.
	PositionControl Control = iota
	// VelocityControl ends at a velocity and acceleration; position is free.
	VelocityControl
)

func (c Control) String() string {
	switch c {
	case PositionControl:
		return "position"
	case VelocityControl:
		return "velocity"
	}
	return "unknown"
}

// Phase layout of a profile. The brake phase pulls an out-of-limit starting
// acceleration back to the limit; the remaining seven are the S-curve.
const (
	BrakePhase = iota
	AccelJerkPhase
	AccelHoldPhase
	AccelReleasePhase
	CruisePhase
	DecelJerkPhase
	DecelHoldPhase
	DecelReleasePhase
	PhaseCount
)

// MaxDuration is the longest profile the solver will produce, in seconds.
const MaxDuration = 7.6e3

const (
	boundsEpsilon   = 1e-9
	targetEpsilon   = 1e-12
	windowEpsilon   = 1e-9
	endpointEpsilon = 1e-6
	rootEpsilon     = 1e-9
)

// Segment is a constant-jerk piece of a profile.
type Segment struct {
	Duration float64 `json:"duration"`
	Jerk     float64 `json:"jerk"`
}

// Profile is a jerk-limited motion profile built from constant-jerk phases.
// It is a plain value: copying it yields an independent profile.
type Profile struct {
	Control  Control
	Phases   [PhaseCount]Segment
	Duration float64

	states [PhaseCount + 1]State
	times  [PhaseCount + 1]float64
}

func (p *Profile) build(start State) {
	p.states[0] = start
	p.times[0] = 0
	for i, ph := range p.Phases {
		p.states[i+1] = p.states[i].Integrate(ph.Duration, ph.Jerk)
		p.times[i+1] = p.times[i] + ph.Duration
	}
	p.Duration = p.times[PhaseCount]
}

// Start is the state the profile was planned from.
func (p *Profile) Start() State {
	return p.states[0]
}

// End is the terminal state.
func (p *Profile) End() State {
	return p.states[PhaseCount]
}

// At evaluates the profile. Times outside [0, Duration] are clamped.
func (p *Profile) At(t float64) State {
	if t <= 0 {
		return p.states[0]
	}
	if t >= p.Duration {
		return p.states[PhaseCount]
	}
	i := p.PhaseAt(t)
	return p.states[i].Integrate(t-p.times[i], p.Phases[i].Jerk)
}

// PhaseAt returns the index of the phase active at time t.
func (p *Profile) PhaseAt(t float64) int {
	for i := 0; i < PhaseCount; i++ {
		if t < p.times[i+1] {
			return i
		}
	}
	return PhaseCount - 1
}

// PeakVelocity returns the velocity of largest magnitude reached, signed.
func (p *Profile) PeakVelocity() float64 {
	peak := p.states[0].Velocity
	consider := func(v float64) {
		if math.Abs(v) > math.Abs(peak) {
			peak = v
		}
	}
	for i, ph := range p.Phases {
		if ph.Duration <= 0 {
			continue
		}
		consider(p.states[i+1].Velocity)
		if ph.Jerk == 0 {
			continue
		}
		// interior extremum where the acceleration crosses zero
		tau := -p.states[i].Acceleration / ph.Jerk
		if tau > 0 && tau < ph.Duration {
			consider(p.states[i].Integrate(tau, ph.Jerk).Velocity)
		}
	}
	return peak
}

// PositionExtrema returns the lowest and highest position reached.
func (p *Profile) PositionExtrema() (lo, hi float64) {
	lo, hi = p.states[0].Position, p.states[0].Position
	consider := func(x float64) {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	for i, ph := range p.Phases {
		if ph.Duration <= 0 {
			continue
		}
		s := p.states[i]
		consider(p.states[i+1].Position)
		roots, n := m.SolveCubic(0, ph.Jerk/2, s.Acceleration, s.Velocity)
		for _, r := range roots[:n] {
			if r > 0 && r < ph.Duration {
				consider(s.Integrate(r, ph.Jerk).Position)
			}
		}
	}
	return lo, hi
}

// TimeAtPosition returns the first time at or after `after` at which the
// profile passes through position x.
func (p *Profile) TimeAtPosition(x, after float64) (float64, bool) {
	after = math.Max(after, 0)
	tol := rootEpsilon * (1 + math.Abs(x))
	for i, ph := range p.Phases {
		if p.times[i+1] < after || ph.Duration <= 0 {
			continue
		}
		s := p.states[i]
		lo := math.Max(0, after-p.times[i])
		if lo == 0 && math.Abs(s.Position-x) <= tol {
			return p.times[i], true
		}
		roots, n := m.SolveCubic(ph.Jerk/6, s.Acceleration/2, s.Velocity, s.Position-x)
		for _, r := range roots[:n] {
			if r >= lo && r <= ph.Duration {
				return p.times[i] + r, true
			}
		}
		if math.Abs(p.states[i+1].Position-x) <= tol {
			return p.times[i+1], true
		}
	}
	if after >= p.Duration && math.Abs(p.End().Position-x) <= tol {
		return after, true
	}
	return 0, false
}

// DecelerationPhases returns the durations of the jerk and constant
// acceleration phases of the final velocity ramp.
func (p *Profile) DecelerationPhases() (t1, t2 float64) {
	if p.Control == VelocityControl {
		return p.Phases[AccelJerkPhase].Duration, p.Phases[AccelHoldPhase].Duration
	}
	return p.Phases[DecelJerkPhase].Duration, p.Phases[DecelHoldPhase].Duration
}

func (p *Profile) finite() bool {
	for i := range p.states {
		s := p.states[i]
		if !m.Finite(s.Position, s.Velocity, s.Acceleration, p.times[i]) {
			return false
		}
	}
	return true
}

func abs(x float64) float64 {
	return math.Abs(x)
}
