package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"pfeifer.dev/scurve/axis"
	"pfeifer.dev/scurve/params"
	"pfeifer.dev/scurve/profile"
	ms "pfeifer.dev/scurve/settings"
	"pfeifer.dev/scurve/trace"
	"pfeifer.dev/scurve/utils"
)

var ErrMoveTimeout = errors.New("move did not settle before the timeout")

// hold is a feed hold window in simulation time.
type hold struct {
	at, duration float64
}

func (h hold) active(t float64) bool {
	return h.duration > 0 && t >= h.at && t < h.at+h.duration
}

func (h hold) pending(t float64) bool {
	return h.duration > 0 && t < h.at+h.duration
}

type simulation struct {
	ax     *axis.Axis
	cycle  float64
	time   float64
	cycles int
	writer *trace.Writer
	last   axis.Output
}

func newSimulation(cycle float64, start profile.State, reg prometheus.Registerer, w *trace.Writer) (*simulation, error) {
	ax, err := axis.New(cycle,
		axis.WithStart(start),
		axis.WithRegisterer(reg),
		axis.WithTolerances(ms.Settings.Tolerances),
		axis.WithParamEpsilon(ms.Settings.ParamEpsilon),
	)
	if err != nil {
		return nil, err
	}
	return &simulation{ax: ax, cycle: cycle, writer: w}, nil
}

func (s *simulation) step(cmd axis.Command) (axis.Output, error) {
	out, err := s.ax.Update(cmd)
	if err != nil {
		return out, err
	}
	s.cycles++
	s.time = float64(s.cycles) * s.cycle
	s.last = out
	if s.writer != nil {
		if err := s.writer.Write(trace.FromOutput(s.time, out)); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *simulation) settled(out axis.Output) bool {
	if !out.Fallback {
		return s.ax.Planner().Mode() == profile.PositionControl && s.ax.Finished()
	}
	tol := ms.Settings.Tolerances
	return math.Abs(out.PositionError) <= tol.PositionSnap && math.Abs(out.Velocity) <= tol.VelocitySnap
}

// run drives the axis until cmd settles, pausing for the feed hold window.
func (s *simulation) run(cmd axis.Command, h hold, timeout float64) error {
	deadline := s.time + timeout
	for {
		c := cmd
		c.VelocityControl = h.active(s.time)
		out, err := s.step(c)
		if err != nil {
			return err
		}
		if !h.pending(s.time) && s.settled(out) {
			return nil
		}
		if s.time >= deadline {
			return errors.Wrapf(ErrMoveTimeout, "target %v after %vs", cmd.TargetPosition, timeout)
		}
	}
}

func (s *simulation) Close() error {
	return s.ax.Close()
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "could not gather metrics")
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := []string{}
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case metric.Counter != nil:
				fmt.Fprintf(w, "%s%v\n", labelStyle.Width(60).Render(name), metric.GetCounter().GetValue())
			case metric.Gauge != nil:
				fmt.Fprintf(w, "%s%v\n", labelStyle.Width(60).Render(name), metric.GetGauge().GetValue())
			case metric.Histogram != nil:
				hist := metric.GetHistogram()
				fmt.Fprintf(w, "%s%d samples, %.3gs total\n", labelStyle.Width(60).Render(name), hist.GetSampleCount(), hist.GetSampleSum())
			}
		}
	}
	return nil
}

func loadLastState() profile.State {
	s := profile.State{}
	data, err := params.GetParam(params.LAST_AXIS_STATE)
	if err != nil {
		utils.Logde(err)
		return s
	}
	utils.Logwe(errors.Wrap(json.Unmarshal(data, &s), "could not parse last axis state"))
	return s
}

func saveLastState(s profile.State, tracePath string) {
	data, err := json.Marshal(s)
	if err != nil {
		utils.Loge(err)
		return
	}
	utils.Loge(params.PutParam(params.LAST_AXIS_STATE, data))
	if tracePath != "" {
		if abs, err := filepath.Abs(tracePath); err == nil {
			tracePath = abs
		}
		utils.Loge(params.PutParam(params.LAST_TRACE_PATH, []byte(tracePath)))
	}
}

func simulateCommand() *cli.Command {
	lim := ms.Settings.Limits()
	return &cli.Command{
		Name:    "simulate",
		Aliases: []string{"sim"},
		Usage:   "Drive a simulated axis through a list of targets",
		Flags: []cli.Flag{
			&cli.Float64SliceFlag{Category: "Targets", Name: "targets", Aliases: []string{"t"}, Usage: "Positions to visit in order", Required: true},
			&cli.Float64Flag{Category: "Targets", Name: "final-velocity", Usage: "Velocity to reach each target with"},
			&cli.BoolFlag{Category: "Targets", Name: "resume", Usage: "Start from the axis state the last simulation ended in"},
			&cli.Float64Flag{Category: "Limits", Name: "min-velocity", Value: lim.MinVelocity, Usage: "Lowest allowed velocity"},
			&cli.Float64Flag{Category: "Limits", Name: "max-velocity", Value: lim.MaxVelocity, Usage: "Highest allowed velocity"},
			&cli.Float64Flag{Category: "Limits", Name: "max-acceleration", Value: lim.MaxAcceleration, Usage: "Acceleration magnitude limit"},
			&cli.Float64Flag{Category: "Limits", Name: "max-jerk", Value: lim.MaxJerk, Usage: "Jerk magnitude limit"},
			&cli.DurationFlag{Category: "Feed Hold", Name: "hold-at", Usage: "Simulation time at which the feed hold starts"},
			&cli.DurationFlag{Category: "Feed Hold", Name: "hold-for", Usage: "How long the feed hold lasts (0 disables)"},
			&cli.DurationFlag{Category: "Limits", Name: "timeout", Value: time.Minute, Usage: "Give up on a move after this much simulation time"},
			&cli.StringFlag{Category: "Output", Name: "trace", Usage: "Record every cycle to this trace file"},
			&cli.BoolFlag{Category: "Output", Name: "metrics", Usage: "Print the axis metrics when done"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var w *trace.Writer
			tracePath := cmd.String("trace")
			if tracePath != "" {
				var err error
				w, err = trace.Create(tracePath)
				if err != nil {
					return err
				}
				defer func() { utils.Loge(w.Close()) }()
			}

			start := profile.State{}
			if cmd.Bool("resume") {
				start = loadLastState()
			}
			reg := prometheus.NewRegistry()
			sim, err := newSimulation(ms.Settings.CycleTime, start, reg, w)
			if err != nil {
				return err
			}
			defer sim.Close()

			h := hold{at: cmd.Duration("hold-at").Seconds(), duration: cmd.Duration("hold-for").Seconds()}
			for _, target := range cmd.Float64Slice("targets") {
				if err := ctx.Err(); err != nil {
					return err
				}
				next := axis.Command{
					TargetPosition:  target,
					MinVelocity:     cmd.Float64("min-velocity"),
					MaxVelocity:     cmd.Float64("max-velocity"),
					FinalVelocity:   cmd.Float64("final-velocity"),
					MaxAcceleration: cmd.Float64("max-acceleration"),
					MaxJerk:         cmd.Float64("max-jerk"),
				}
				err := sim.run(next, h, cmd.Duration("timeout").Seconds())
				state := sim.ax.State()
				slog.Info("move done", "target", target, "time", sim.time, "position", state.Position, "velocity", state.Velocity)
				fmt.Printf("%s%.9g at %.6fs (velocity %.3g)\n", labelStyle.Render(fmt.Sprintf("target %g", target)), state.Position, sim.time, state.Velocity)
				if err != nil {
					fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
					saveLastState(state, tracePath)
					return err
				}
			}
			saveLastState(sim.ax.State(), tracePath)

			if cmd.Bool("metrics") {
				return printMetrics(os.Stdout, reg)
			}
			return nil
		},
	}
}
