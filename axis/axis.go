// Package axis drives one coordinate from a servo loop: it replans when the
// command changes, samples the active trajectory every cycle and falls back to
// closed-form velocity tracking when no trajectory could be planned.
package axis

import (
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"pfeifer.dev/scurve/fallback"
	m "pfeifer.dev/scurve/math"
	"pfeifer.dev/scurve/planner"
	"pfeifer.dev/scurve/profile"
	"pfeifer.dev/scurve/utils"
)

// ParamEpsilon is how far a command parameter must move to force a replan.
const ParamEpsilon = 1e-8

// Command is what the axis is asked to do this cycle.
type Command struct {
	// VelocityControl stops the axis under velocity control: feed hold,
	// pause, abort or a zero feed override.
	VelocityControl bool    `json:"velocity_control"`
	TargetPosition  float64 `json:"target_position"`
	// MinVelocity of zero keeps motion unidirectional.
	MinVelocity     float64 `json:"min_velocity"`
	MaxVelocity     float64 `json:"max_velocity"`
	FinalVelocity   float64 `json:"final_velocity"`
	MaxAcceleration float64 `json:"max_acceleration"`
	MaxJerk         float64 `json:"max_jerk"`
}

// Output is the commanded state after one cycle.
type Output struct {
	Position      float64 `json:"position"`
	Velocity      float64 `json:"velocity"`
	Acceleration  float64 `json:"acceleration"`
	Jerk          float64 `json:"jerk"`
	PositionError float64 `json:"position_error"`
	Decelerating  bool    `json:"decelerating"`
	Fallback      bool    `json:"fallback"`
	Replanned     bool    `json:"replanned"`
}

type lastCommand struct {
	maxAcc   utils.Float64Tracker
	maxJerk  utils.Float64Tracker
	maxVel   utils.Float64Tracker
	finalVel utils.Float64Tracker
	target   utils.Float64Tracker
	minVel   utils.Float64Tracker
}

func newLastCommand(eps float64) lastCommand {
	return lastCommand{
		maxAcc:   utils.Float64Tracker{Epsilon: eps},
		maxJerk:  utils.Float64Tracker{Epsilon: eps},
		maxVel:   utils.Float64Tracker{Epsilon: eps},
		finalVel: utils.Float64Tracker{Epsilon: eps},
		target:   utils.Float64Tracker{Epsilon: eps},
		minVel:   utils.Float64Tracker{Epsilon: eps},
	}
}

func (l *lastCommand) differs(cmd Command) bool {
	if l.maxAcc.Differs(cmd.MaxAcceleration) || l.maxJerk.Differs(cmd.MaxJerk) {
		return true
	}
	if cmd.VelocityControl {
		return false
	}
	return l.maxVel.Differs(cmd.MaxVelocity) || l.finalVel.Differs(cmd.FinalVelocity) ||
		l.target.Differs(cmd.TargetPosition) || l.minVel.Differs(cmd.MinVelocity)
}

func (l *lastCommand) update(cmd Command) {
	l.maxAcc.Update(cmd.MaxAcceleration)
	l.maxJerk.Update(cmd.MaxJerk)
	if cmd.VelocityControl {
		return
	}
	l.maxVel.Update(cmd.MaxVelocity)
	l.finalVel.Update(cmd.FinalVelocity)
	l.target.Update(cmd.TargetPosition)
	l.minVel.Update(cmd.MinVelocity)
}

// Axis is one servo-driven coordinate. It is not safe for concurrent use.
type Axis struct {
	planner   *planner.Planner
	cycleTime float64
	epsilon   float64
	metrics   *Metrics

	state       profile.State
	trajTime    float64
	lastReqPos  float64
	velocityCtl bool
	last        lastCommand
	inFallback  bool

	stopping utils.Curry[float64]
	latency  m.MovingAverage
	interval utils.UpdateTracker
}

type Option func(*Axis)

// WithRegisterer registers the axis metrics on reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Axis) {
		a.metrics = NewMetrics(reg)
	}
}

func WithStart(s profile.State) Option {
	return func(a *Axis) {
		a.state = s
	}
}

func WithTolerances(t planner.Tolerances) Option {
	return func(a *Axis) {
		a.planner.SetTolerances(t)
	}
}

func WithParamEpsilon(eps float64) Option {
	return func(a *Axis) {
		a.epsilon = eps
	}
}

func New(cycleTime float64, opts ...Option) (*Axis, error) {
	p, err := planner.New(cycleTime)
	if err != nil {
		return nil, errors.Wrap(err, "create axis planner")
	}
	a := &Axis{
		planner:   p,
		cycleTime: cycleTime,
		epsilon:   ParamEpsilon,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = NewMetrics(prometheus.NewRegistry())
	}
	a.last = newLastCommand(a.epsilon)
	a.latency.Init(100)
	a.interval.Init(100)
	return a, nil
}

func (a *Axis) Close() error {
	return a.planner.Close()
}

func (a *Axis) Metrics() *Metrics {
	return a.metrics
}

func (a *Axis) State() profile.State {
	return a.state
}

func (a *Axis) Planner() *planner.Planner {
	return a.planner
}

// TrajectoryTime is how far into the active trajectory the axis has run.
func (a *Axis) TrajectoryTime() float64 {
	return a.trajTime
}

// Finished reports whether the active trajectory has been run to its end.
func (a *Axis) Finished() bool {
	done, err := a.planner.IsFinished(a.trajTime)
	return err == nil && done
}

// Latency is the moving average and peak of Update's run time in seconds.
func (a *Axis) Latency() (avg, peak float64) {
	return a.latency.Estimate, a.latency.Peak
}

// Interval is the moving average of the wall time between updates.
func (a *Axis) Interval() float64 {
	return a.interval.DiffMA.Estimate
}

// StoppingDistance is the distance the axis needs to come to rest from its
// current state under the given limits.
func (a *Axis) StoppingDistance(maxAcc, maxJerk float64) float64 {
	return a.stopping.Value(func() float64 {
		return fallback.StoppingDistance(a.state.Velocity, a.state.Acceleration, maxAcc, maxJerk)
	})
}

// Update runs one servo cycle.
func (a *Axis) Update(cmd Command) (Output, error) {
	started := time.Now()
	defer func() {
		elapsed := time.Since(started).Seconds()
		a.latency.Update(elapsed)
		a.metrics.UpdateSeconds.Observe(elapsed)
	}()
	a.interval.Update()
	a.stopping.Reset()

	replanned := a.replan(cmd)

	prev := a.state
	var out Output
	if a.planner.Planned() {
		s, err := a.advance()
		if err != nil {
			return Output{}, err
		}
		out = s
		if a.inFallback {
			slog.Info("axis trajectory restored")
			a.inFallback = false
		}
	} else {
		out = a.fallbackStep(cmd)
	}
	out.Replanned = replanned

	if cmd.VelocityControl {
		out.PositionError = 0
	} else {
		out.PositionError = cmd.TargetPosition - a.state.Position
	}
	dir := m.Sign(a.state.Velocity)
	if dir == 0 {
		dir = m.Sign(prev.Velocity)
	}
	out.Decelerating = a.state.Acceleration*dir < 0 ||
		(a.state.Acceleration == 0 && math.Abs(a.state.Velocity) < math.Abs(prev.Velocity))
	return out, nil
}

func (a *Axis) replan(cmd Command) bool {
	need := false
	switch {
	case a.planner.Planned() && a.velocityCtl != cmd.VelocityControl:
		slog.Debug("axis control mode changed", "velocity_control", cmd.VelocityControl)
		a.planner.Reset()
		need = true
	case !a.planner.Planned():
		need = true
	default:
		need = a.last.differs(cmd)
	}
	if !need {
		return false
	}

	var err error
	mode := planner.PositionControl
	s := a.state
	if cmd.VelocityControl {
		mode = planner.VelocityControl
		err = a.planner.PlanVelocity(s.Velocity, s.Acceleration, 0, 0, 0, cmd.MaxAcceleration, cmd.MaxJerk)
	} else {
		err = a.planner.PlanPosition(s.Position, s.Velocity, s.Acceleration, cmd.TargetPosition,
			cmd.FinalVelocity, 0, cmd.MinVelocity, cmd.MaxVelocity, cmd.MaxAcceleration, cmd.MaxJerk)
	}
	a.metrics.Plans.WithLabelValues(mode.String(), planner.KindOf(err).String()).Inc()

	if err != nil {
		if a.planner.Planned() {
			slog.Warn("axis replan failed, keeping previous trajectory", "mode", mode, "error", err)
			a.metrics.KeptTrajectories.Inc()
		} else if !a.inFallback {
			slog.Error("axis planning failed, tracking with closed-form fallback", "mode", mode, "error", err,
				"position", s.Position, "velocity", s.Velocity, "acceleration", s.Acceleration,
				"target", cmd.TargetPosition, "max_velocity", cmd.MaxVelocity)
		}
		return false
	}

	a.trajTime = 0
	a.lastReqPos = 0
	a.velocityCtl = cmd.VelocityControl
	a.last.update(cmd)
	if d, err := a.planner.Duration(); err == nil {
		a.metrics.Duration.Set(d)
	}
	return true
}

func (a *Axis) advance() (Output, error) {
	duration, err := a.planner.Duration()
	if err != nil {
		return Output{}, err
	}
	a.trajTime = math.Min(a.trajTime+a.cycleTime, duration)
	s, err := a.planner.Sample(a.trajTime)
	if err != nil {
		return Output{}, errors.Wrap(err, "sample axis trajectory")
	}

	pos := s.Position
	if a.velocityCtl {
		// velocity plans start at zero; accumulate the displacement
		pos = a.state.Position + (s.Position - a.lastReqPos)
		a.lastReqPos = s.Position
	}
	a.state = profile.State{Position: pos, Velocity: s.Velocity, Acceleration: s.Acceleration}
	return Output{Position: pos, Velocity: s.Velocity, Acceleration: s.Acceleration, Jerk: s.Jerk}, nil
}

func (a *Axis) fallbackStep(cmd Command) Output {
	a.metrics.FallbackCycles.Inc()
	a.inFallback = true

	targetV := 0.0
	if !cmd.VelocityControl {
		togo := cmd.TargetPosition - a.state.Position
		if math.Abs(togo) > a.StoppingDistance(cmd.MaxAcceleration, cmd.MaxJerk) {
			targetV = m.Sign(togo) * cmd.MaxVelocity
			if togo < 0 && cmd.MinVelocity >= 0 {
				targetV = 0
			}
		} else {
			targetV = cmd.FinalVelocity
		}
	}

	step := fallback.NextVelocityStep(a.state.Velocity, a.state.Acceleration, a.cycleTime, targetV,
		cmd.MaxAcceleration, cmd.MaxJerk)
	pos := a.state.Position + (a.state.Velocity+step.Velocity)/2*a.cycleTime
	a.state = profile.State{Position: pos, Velocity: step.Velocity, Acceleration: step.Acceleration}
	return Output{
		Position:     pos,
		Velocity:     step.Velocity,
		Acceleration: step.Acceleration,
		Jerk:         step.Jerk,
		Fallback:     true,
	}
}
