package planner

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"pfeifer.dev/scurve/profile"
)

// Mode is the control mode of the active trajectory.
type Mode = profile.Control

const (
	PositionControl = profile.PositionControl
	VelocityControl = profile.VelocityControl
)

// trajectory is everything a plan call replaces. A new value is built on the
// side and only assigned to the planner once the solver succeeded.
type trajectory struct {
	mode    Mode
	target  profile.State
	profile profile.Profile

	// acceleration last handed to the control loop, carried across replans
	lastSampledAcceleration float64
	firstCycleAfterReplan   bool
}

// Planner owns one jerk-limited trajectory for a single coordinate. It is not
// safe for concurrent use; the servo loop serializes all calls.
type Planner struct {
	cycleTime  float64
	tolerances Tolerances
	bounds     profile.Bounds
	logging    bool

	planned bool
	seeded  bool
	closed  bool
	traj    trajectory
}

func New(cycleTime float64) (*Planner, error) {
	if !(cycleTime > 0) || math.IsInf(cycleTime, 1) {
		return nil, errors.Wrapf(ErrInvalidCycleTime, "cycle time %g", cycleTime)
	}
	return &Planner{
		cycleTime:  cycleTime,
		tolerances: DefaultTolerances(),
		logging:    true,
	}, nil
}

// Close releases the planner. Any later call fails with ErrClosed.
func (p *Planner) Close() error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	p.planned = false
	p.traj = trajectory{}
	return nil
}

func (p *Planner) CycleTime() float64 {
	return p.cycleTime
}

// SetLogging toggles diagnostics. Callers probing feasibility turn it off to
// keep routine failures out of the log.
func (p *Planner) SetLogging(enabled bool) {
	p.logging = enabled
}

func (p *Planner) SetTolerances(t Tolerances) {
	p.tolerances = t
}

func (p *Planner) Tolerances() Tolerances {
	return p.tolerances
}

// SetPositionLimits constrains later position plans to [lo, hi].
func (p *Planner) SetPositionLimits(lo, hi float64) {
	p.bounds = profile.Bounds{Enabled: true, Min: lo, Max: hi}
}

func (p *Planner) ClearPositionLimits() {
	p.bounds = profile.Bounds{}
}

// Reset drops the active trajectory. The last sampled acceleration survives so
// the next plan still joins the control loop's real acceleration.
func (p *Planner) Reset() {
	p.planned = false
	p.traj = trajectory{lastSampledAcceleration: p.traj.lastSampledAcceleration}
}

func (p *Planner) Planned() bool {
	return p.planned && !p.closed
}

func (p *Planner) Mode() Mode {
	return p.traj.mode
}

// PlanPosition replaces the active trajectory with one that moves from the
// current state to targetPos, arriving with targetVel and targetAcc. On
// failure the active trajectory is left untouched.
func (p *Planner) PlanPosition(curPos, curVel, curAcc, targetPos, targetVel, targetAcc, minVel, maxVel, maxAcc, maxJerk float64) error {
	if p.closed {
		return ErrClosed
	}
	if !(maxVel > 0 && maxAcc > 0 && maxJerk > 0) {
		return p.fail(PositionControl, errors.Wrapf(ErrInvalidLimits, "max velocity %g, acceleration %g, jerk %g", maxVel, maxAcc, maxJerk))
	}

	start := profile.State{Position: curPos, Velocity: curVel, Acceleration: curAcc}
	target := profile.State{Position: targetPos, Velocity: targetVel, Acceleration: targetAcc}
	lim := profile.Limits{MinVelocity: minVel, MaxVelocity: maxVel, MaxAcceleration: maxAcc, MaxJerk: maxJerk}

	prof, err := profile.SolvePosition(start, target, lim, p.bounds)
	if err != nil {
		return p.fail(PositionControl, errors.Wrap(err, "plan position"))
	}
	p.commit(PositionControl, target, prof, curAcc)
	return nil
}

// PlanVelocity replaces the active trajectory with one that reaches targetVel
// and targetAcc. Position is unconstrained and starts from zero, so sampled
// positions are displacements since the plan.
func (p *Planner) PlanVelocity(curVel, curAcc, targetVel, targetAcc, minVel, maxAcc, maxJerk float64) error {
	if p.closed {
		return ErrClosed
	}
	if !(maxAcc > 0 && maxJerk > 0) {
		return p.fail(VelocityControl, errors.Wrapf(ErrInvalidLimits, "max acceleration %g, jerk %g", maxAcc, maxJerk))
	}

	start := profile.State{Velocity: curVel, Acceleration: curAcc}
	lim := profile.Limits{MinVelocity: minVel, MaxAcceleration: maxAcc, MaxJerk: maxJerk}

	prof, err := profile.SolveVelocity(start, targetVel, targetAcc, lim)
	if err != nil {
		return p.fail(VelocityControl, errors.Wrap(err, "plan velocity"))
	}
	p.commit(VelocityControl, profile.State{Velocity: targetVel, Acceleration: targetAcc}, prof, curAcc)
	return nil
}

func (p *Planner) commit(mode Mode, target profile.State, prof profile.Profile, curAcc float64) {
	next := trajectory{
		mode:                    mode,
		target:                  target,
		profile:                 prof,
		lastSampledAcceleration: p.traj.lastSampledAcceleration,
		firstCycleAfterReplan:   true,
	}
	if !p.seeded {
		next.lastSampledAcceleration = curAcc
		p.seeded = true
	}
	replan := p.planned
	p.traj = next
	p.planned = true

	if p.logging {
		slog.Debug("planned trajectory", "mode", mode, "replan", replan, "duration", prof.Duration,
			"target_position", target.Position, "target_velocity", target.Velocity)
	}
}

func (p *Planner) fail(mode Mode, err error) error {
	if p.logging {
		slog.Warn("trajectory planning failed", "mode", mode, "kind", KindOf(err), "planned", p.planned, "error", err)
	}
	return err
}

func (p *Planner) active() (*trajectory, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if !p.planned {
		return nil, ErrNotPlanned
	}
	return &p.traj, nil
}

func (p *Planner) Duration() (float64, error) {
	tr, err := p.active()
	if err != nil {
		return -1, err
	}
	return tr.profile.Duration, nil
}

func (p *Planner) IsFinished(t float64) (bool, error) {
	tr, err := p.active()
	if err != nil {
		return false, err
	}
	return t >= tr.profile.Duration, nil
}

// DecelerationPhases returns the jerk and constant deceleration durations of
// the trajectory's final velocity ramp.
func (p *Planner) DecelerationPhases() (t1, t2 float64, err error) {
	tr, err := p.active()
	if err != nil {
		return 0, 0, err
	}
	t1, t2 = tr.profile.DecelerationPhases()
	return t1, t2, nil
}

func (p *Planner) PeakVelocity() (float64, error) {
	tr, err := p.active()
	if err != nil {
		return 0, err
	}
	return tr.profile.PeakVelocity(), nil
}

func (p *Planner) StartVelocity() (float64, error) {
	tr, err := p.active()
	if err != nil {
		return 0, err
	}
	return tr.profile.Start().Velocity, nil
}

// TimeAtPosition returns the first time at or after `after` at which the
// trajectory passes through position.
func (p *Planner) TimeAtPosition(position, after float64) (float64, error) {
	tr, err := p.active()
	if err != nil {
		return -1, err
	}
	t, ok := tr.profile.TimeAtPosition(position, after)
	if !ok {
		return -1, errors.Wrapf(ErrPositionNotReached, "position %g after %gs", position, after)
	}
	return t, nil
}

// Profile returns a copy of the active solver profile.
func (p *Planner) Profile() (profile.Profile, error) {
	tr, err := p.active()
	if err != nil {
		return profile.Profile{}, err
	}
	return tr.profile, nil
}
