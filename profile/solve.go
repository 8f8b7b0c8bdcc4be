package profile

import (
	"math"

	"github.com/pkg/errors"
	m "pfeifer.dev/scurve/math"
)

const (
	maxIterations    = 128
	bisectionEpsilon = 1e-14
)

// SolvePosition plans a profile from start to target that honors lim and,
// when enabled, bounds.
func SolvePosition(start, target State, lim Limits, bounds Bounds) (Profile, error) {
	if !m.Finite(start.Position, start.Velocity, start.Acceleration,
		target.Position, target.Velocity, target.Acceleration,
		lim.MinVelocity, lim.MaxVelocity, lim.MaxAcceleration, lim.MaxJerk) {
		return Profile{}, errors.Wrap(ErrInvalidInput, "non-finite position input")
	}
	if lim.MaxAcceleration <= 0 || lim.MaxJerk <= 0 {
		return Profile{}, errors.Wrapf(ErrInvalidInput, "acceleration %g and jerk %g must be positive", lim.MaxAcceleration, lim.MaxJerk)
	}
	if lim.MinVelocity >= lim.MaxVelocity {
		return Profile{}, errors.Wrapf(ErrZeroLimits, "velocity window [%g, %g]", lim.MinVelocity, lim.MaxVelocity)
	}
	aMax := lim.MaxAcceleration
	if math.Abs(target.Acceleration) > aMax*(1+windowEpsilon) {
		return Profile{}, errors.Wrapf(ErrInvalidInput, "target acceleration %g exceeds %g", target.Acceleration, aMax)
	}
	vTol := windowEpsilon * (1 + math.Abs(lim.MinVelocity) + math.Abs(lim.MaxVelocity))
	if target.Velocity > lim.MaxVelocity+vTol || target.Velocity < lim.MinVelocity-vTol {
		return Profile{}, errors.Wrapf(ErrInvalidInput, "target velocity %g outside [%g, %g]", target.Velocity, lim.MinVelocity, lim.MaxVelocity)
	}

	p := Profile{Control: PositionControl}
	if atTarget(start, target, true) {
		p.build(start)
		return p, nil
	}

	p.Phases[BrakePhase] = brake(start.Acceleration, aMax, lim.MaxJerk)
	s := start.Integrate(p.Phases[BrakePhase].Duration, p.Phases[BrakePhase].Jerk)
	dist := target.Position - s.Position
	tol := endpointEpsilon * (1 + math.Abs(target.Position))

	dHi := p.shape(s, target, lim.MaxVelocity, 0, lim)
	switch {
	case dist >= dHi:
		if dist-dHi > tol {
			if lim.MaxVelocity <= 0 {
				return Profile{}, errors.Wrapf(ErrExecutionTimeCalculation, "target %g unreachable without positive velocity", target.Position)
			}
			p.shape(s, target, lim.MaxVelocity, (dist-dHi)/lim.MaxVelocity, lim)
		}
	default:
		dLo := p.shape(s, target, lim.MinVelocity, 0, lim)
		switch {
		case dist > dLo:
			p.bisect(s, target, dist, lim)
		case dLo-dist <= tol:
		case lim.MinVelocity < 0:
			p.shape(s, target, lim.MinVelocity, (dist-dLo)/lim.MinVelocity, lim)
		default:
			return Profile{}, errors.Wrapf(ErrExecutionTimeCalculation, "target %g overshot by %g without reversing", target.Position, dLo-dist)
		}
	}

	p.build(start)
	if err := p.check(target, true); err != nil {
		return Profile{}, err
	}
	if lo, hi := p.PositionExtrema(); !bounds.contains(lo, hi) {
		return Profile{}, errors.Wrapf(ErrPositionalLimits, "profile spans [%g, %g], bounds [%g, %g]", lo, hi, bounds.Min, bounds.Max)
	}
	return p, nil
}

// SolveVelocity plans a profile from start to the target velocity and
// acceleration. Position is unconstrained and MaxVelocity is ignored.
func SolveVelocity(start State, targetVel, targetAcc float64, lim Limits) (Profile, error) {
	if !m.Finite(start.Position, start.Velocity, start.Acceleration, targetVel, targetAcc,
		lim.MinVelocity, lim.MaxAcceleration, lim.MaxJerk) {
		return Profile{}, errors.Wrap(ErrInvalidInput, "non-finite velocity input")
	}
	if lim.MaxAcceleration <= 0 || lim.MaxJerk <= 0 {
		return Profile{}, errors.Wrapf(ErrInvalidInput, "acceleration %g and jerk %g must be positive", lim.MaxAcceleration, lim.MaxJerk)
	}
	aMax := lim.MaxAcceleration
	if math.Abs(targetAcc) > aMax*(1+windowEpsilon) {
		return Profile{}, errors.Wrapf(ErrInvalidInput, "target acceleration %g exceeds %g", targetAcc, aMax)
	}
	if targetVel < lim.MinVelocity-windowEpsilon*(1+math.Abs(lim.MinVelocity)) {
		return Profile{}, errors.Wrapf(ErrInvalidInput, "target velocity %g below %g", targetVel, lim.MinVelocity)
	}

	target := State{Velocity: targetVel, Acceleration: targetAcc}
	p := Profile{Control: VelocityControl}
	if atTarget(start, target, false) {
		p.build(start)
		return p, nil
	}

	p.Phases[BrakePhase] = brake(start.Acceleration, aMax, lim.MaxJerk)
	s := start.Integrate(p.Phases[BrakePhase].Duration, p.Phases[BrakePhase].Jerk)
	r := ramp(s.Velocity, s.Acceleration, targetVel, targetAcc, aMax, lim.MaxJerk)
	copy(p.Phases[AccelJerkPhase:CruisePhase], r[:])

	p.build(start)
	if err := p.check(target, false); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// shape lays out the accelerating ramp to vp, a cruise of the given length and
// the ramp into target. It returns the distance covered after the brake phase.
func (p *Profile) shape(s, target State, vp, cruise float64, lim Limits) float64 {
	up := ramp(s.Velocity, s.Acceleration, vp, 0, lim.MaxAcceleration, lim.MaxJerk)
	down := ramp(vp, 0, target.Velocity, target.Acceleration, lim.MaxAcceleration, lim.MaxJerk)
	copy(p.Phases[AccelJerkPhase:CruisePhase], up[:])
	p.Phases[CruisePhase] = Segment{Duration: cruise}
	copy(p.Phases[DecelJerkPhase:], down[:])

	end := s
	for _, ph := range p.Phases[AccelJerkPhase:] {
		end = end.Integrate(ph.Duration, ph.Jerk)
	}
	return end.Position - s.Position
}

// bisect searches the peak velocity whose ramps cover dist exactly. The caller
// guarantees the distance at MinVelocity is short and at MaxVelocity is long.
func (p *Profile) bisect(s, target State, dist float64, lim Limits) {
	lo, hi := lim.MinVelocity, lim.MaxVelocity
	best, bestErr := hi, math.Inf(1)
	for i := 0; i < maxIterations; i++ {
		mid := lo + (hi-lo)/2
		d := p.shape(s, target, mid, 0, lim)
		if e := math.Abs(d - dist); e < bestErr {
			best, bestErr = mid, e
		}
		if d < dist {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo <= bisectionEpsilon*(1+math.Abs(lo)+math.Abs(hi)) {
			break
		}
	}
	p.shape(s, target, best, 0, lim)
}

func (p *Profile) check(target State, position bool) error {
	switch {
	case math.IsNaN(p.Duration):
		return errors.Wrap(ErrUnknown, "duration is NaN")
	case math.IsInf(p.Duration, 0) || p.Duration > MaxDuration:
		return errors.Wrapf(ErrDurationOverflow, "duration %g", p.Duration)
	case !p.finite():
		return errors.Wrap(ErrUnknown, "non-finite phase state")
	}

	end := p.End()
	if position && math.Abs(end.Position-target.Position) > endpointEpsilon*(1+math.Abs(target.Position)) {
		return errors.Wrapf(ErrSynchronizationCalculation, "position ends at %g, want %g", end.Position, target.Position)
	}
	if math.Abs(end.Velocity-target.Velocity) > endpointEpsilon*(1+math.Abs(target.Velocity)) ||
		math.Abs(end.Acceleration-target.Acceleration) > endpointEpsilon*(1+math.Abs(target.Acceleration)) {
		return errors.Wrapf(ErrSynchronizationCalculation, "ends at v=%g a=%g, want v=%g a=%g",
			end.Velocity, end.Acceleration, target.Velocity, target.Acceleration)
	}
	return nil
}

func atTarget(s, target State, position bool) bool {
	if position && math.Abs(s.Position-target.Position) > targetEpsilon*(1+math.Abs(target.Position)) {
		return false
	}
	return math.Abs(s.Velocity-target.Velocity) <= targetEpsilon*(1+math.Abs(target.Velocity)) &&
		math.Abs(s.Acceleration-target.Acceleration) <= targetEpsilon*(1+math.Abs(target.Acceleration))
}
