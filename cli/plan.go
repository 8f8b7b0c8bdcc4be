package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"pfeifer.dev/scurve/fallback"
	"pfeifer.dev/scurve/planner"
	"pfeifer.dev/scurve/profile"
	ms "pfeifer.dev/scurve/settings"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Width(22)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type move struct {
	start     profile.State
	velocity  bool
	target    float64
	targetVel float64
	limits    profile.Limits
}

func moveFlags() []cli.Flag {
	lim := ms.Settings.Limits()
	return []cli.Flag{
		&cli.Float64Flag{Category: "Start", Name: "position", Usage: "Starting position"},
		&cli.Float64Flag{Category: "Start", Name: "velocity", Usage: "Starting velocity"},
		&cli.Float64Flag{Category: "Start", Name: "acceleration", Usage: "Starting acceleration"},
		&cli.Float64Flag{Category: "Target", Name: "target", Aliases: []string{"t"}, Usage: "Target position"},
		&cli.Float64Flag{Category: "Target", Name: "final-velocity", Usage: "Velocity at the target, or the target velocity with --velocity-mode"},
		&cli.BoolFlag{Category: "Target", Name: "velocity-mode", Usage: "Reach a velocity instead of a position"},
		&cli.Float64Flag{Category: "Limits", Name: "min-velocity", Value: lim.MinVelocity, Usage: "Lowest allowed velocity"},
		&cli.Float64Flag{Category: "Limits", Name: "max-velocity", Value: lim.MaxVelocity, Usage: "Highest allowed velocity"},
		&cli.Float64Flag{Category: "Limits", Name: "max-acceleration", Value: lim.MaxAcceleration, Usage: "Acceleration magnitude limit"},
		&cli.Float64Flag{Category: "Limits", Name: "max-jerk", Value: lim.MaxJerk, Usage: "Jerk magnitude limit"},
	}
}

func moveFromCommand(cmd *cli.Command) move {
	return move{
		start: profile.State{
			Position:     cmd.Float64("position"),
			Velocity:     cmd.Float64("velocity"),
			Acceleration: cmd.Float64("acceleration"),
		},
		velocity:  cmd.Bool("velocity-mode"),
		target:    cmd.Float64("target"),
		targetVel: cmd.Float64("final-velocity"),
		limits: profile.Limits{
			MinVelocity:     cmd.Float64("min-velocity"),
			MaxVelocity:     cmd.Float64("max-velocity"),
			MaxAcceleration: cmd.Float64("max-acceleration"),
			MaxJerk:         cmd.Float64("max-jerk"),
		},
	}
}

func (mv move) plan() (*planner.Planner, error) {
	p, err := planner.New(ms.Settings.CycleTime)
	if err != nil {
		return nil, err
	}
	p.SetTolerances(ms.Settings.Tolerances)
	s, lim := mv.start, mv.limits
	if mv.velocity {
		err = p.PlanVelocity(s.Velocity, s.Acceleration, mv.targetVel, 0, lim.MinVelocity, lim.MaxAcceleration, lim.MaxJerk)
	} else {
		err = p.PlanPosition(s.Position, s.Velocity, s.Acceleration, mv.target, mv.targetVel, 0,
			lim.MinVelocity, lim.MaxVelocity, lim.MaxAcceleration, lim.MaxJerk)
	}
	if err != nil {
		p.Close()
		return nil, errors.Wrapf(err, "could not plan move (%s, code %d)", planner.KindOf(err), planner.Code(err))
	}
	return p, nil
}

type timedSample struct {
	Time float64
	planner.Sample
}

// sampleEvery samples the whole trajectory every interval seconds, always
// including the end. Sample derives jerk over one servo cycle, so the table
// reports the jerk of the phase active at each time instead.
func sampleEvery(p *planner.Planner, interval float64) ([]timedSample, error) {
	d, err := p.Duration()
	if err != nil {
		return nil, err
	}
	if !(interval > 0) {
		return nil, errors.New("sample interval must be positive")
	}
	prof, err := p.Profile()
	if err != nil {
		return nil, err
	}
	samples := []timedSample{}
	for i := 0; ; i++ {
		t := float64(i) * interval
		last := t >= d
		if last {
			t = d
		}
		s, err := p.Sample(t)
		if err != nil {
			return nil, err
		}
		s.Jerk = 0
		if !last {
			s.Jerk = prof.Phases[prof.PhaseAt(t)].Jerk
		}
		samples = append(samples, timedSample{Time: t, Sample: s})
		if last {
			return samples, nil
		}
	}
}

func printSummary(w io.Writer, p *planner.Planner) error {
	d, err := p.Duration()
	if err != nil {
		return err
	}
	peak, err := p.PeakVelocity()
	if err != nil {
		return err
	}
	startV, err := p.StartVelocity()
	if err != nil {
		return err
	}
	t1, t2, err := p.DecelerationPhases()
	if err != nil {
		return err
	}
	row := func(label string, v float64) {
		fmt.Fprintf(w, "%s%.9g\n", labelStyle.Render(label), v)
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s trajectory", p.Mode())))
	row("duration", d)
	row("start velocity", startV)
	row("peak velocity", peak)
	row("decel jerk phase", t1)
	row("decel hold phase", t2)
	return nil
}

// estimates are the closed-form and estimator answers for a planned move,
// printed next to the solver's own numbers.
type estimates struct {
	startStopDistance float64
	finishDistance    float64
	peakStopTime      float64
	rampSpeed         float64
	// position moves only
	distance          float64
	maxStartSpeed     float64
	conservativePeak  float64
}

func estimate(mv move, p *planner.Planner) (estimates, error) {
	prof, err := p.Profile()
	if err != nil {
		return estimates{}, err
	}
	peak, err := p.PeakVelocity()
	if err != nil {
		return estimates{}, err
	}
	s, lim := mv.start, mv.limits
	var rampTime float64
	for _, ph := range prof.Phases[profile.AccelJerkPhase:profile.CruisePhase] {
		rampTime += ph.Duration
	}
	est := estimates{
		startStopDistance: fallback.StoppingDistance(s.Velocity, s.Acceleration, lim.MaxAcceleration, lim.MaxJerk),
		finishDistance:    fallback.FinishWithSpeedDistance(s.Velocity, mv.targetVel, s.Acceleration, lim.MaxAcceleration, lim.MaxJerk),
		peakStopTime:      fallback.DecelerateTime(peak, lim.MaxAcceleration, lim.MaxJerk),
		rampSpeed:         fallback.SpeedWithTime(lim.MaxAcceleration, lim.MaxJerk, rampTime),
	}
	if mv.velocity {
		return est, nil
	}

	est.distance = math.Abs(mv.target - s.Position)
	est.conservativePeak, err = fallback.ConservativePeakVelocity(est.distance, math.Abs(mv.targetVel), lim.MaxAcceleration, lim.MaxJerk)
	if err != nil {
		slog.Debug("conservative peak fell back to the end speed", "error", err)
	}
	e, err := fallback.NewEstimator(ms.Settings.CycleTime)
	if err != nil {
		return estimates{}, err
	}
	defer e.Close()
	est.maxStartSpeed, err = e.MaxStartSpeed(est.distance, mv.targetVel, lim.MaxAcceleration, lim.MaxJerk)
	if err != nil {
		return estimates{}, errors.Wrap(err, "could not estimate max start speed")
	}
	return est, nil
}

func printEstimates(w io.Writer, mv move, est estimates) {
	row := func(label string, v float64) {
		fmt.Fprintf(w, "%s%.9g\n", labelStyle.Render(label), v)
	}
	fmt.Fprintln(w, headerStyle.Render("estimates"))
	row("stopping distance", est.startStopDistance)
	row("finish distance", est.finishDistance)
	row("stop time from peak", est.peakStopTime)
	row("ramp speed", est.rampSpeed)
	if mv.velocity {
		return
	}
	row("max start speed", est.maxStartSpeed)
	row("conservative peak", est.conservativePeak)
}

func printSamples(w io.Writer, samples []timedSample) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%12s %14s %14s %14s %14s", "time", "position", "velocity", "acceleration", "jerk")))
	for _, s := range samples {
		fmt.Fprintf(w, "%12.6f %14.6f %14.6f %14.6f %14.6f\n", s.Time, s.Position, s.Velocity, s.Acceleration, s.Jerk)
	}
}

func planCommand() *cli.Command {
	flags := append(moveFlags(), &cli.Float64Flag{
		Category: "Output",
		Name:     "sample-interval",
		Usage:    "Print a sample table with this spacing in seconds (0 disables)",
	})
	return &cli.Command{
		Name:    "plan",
		Aliases: []string{"p"},
		Usage:   "Plan one move and print its shape",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			mv := moveFromCommand(cmd)
			p, err := mv.plan()
			if err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
				return err
			}
			defer p.Close()
			if err := printSummary(os.Stdout, p); err != nil {
				return err
			}
			est, err := estimate(mv, p)
			if err != nil {
				return err
			}
			printEstimates(os.Stdout, mv, est)
			if interval := cmd.Float64("sample-interval"); interval > 0 {
				samples, err := sampleEvery(p, interval)
				if err != nil {
					return err
				}
				printSamples(os.Stdout, samples)
			}
			return nil
		},
	}
}
