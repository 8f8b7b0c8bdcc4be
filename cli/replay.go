package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"pfeifer.dev/scurve/params"
	"pfeifer.dev/scurve/trace"
)

type traceSummary struct {
	Records         int
	Duration        float64
	Final           trace.Record
	MaxVelocity     float64
	MaxAcceleration float64
	MaxJerk         float64
	FallbackCycles  int
	Replans         int
}

func summarize(records []trace.Record) traceSummary {
	s := traceSummary{Records: len(records)}
	for _, r := range records {
		s.MaxVelocity = math.Max(s.MaxVelocity, math.Abs(r.Velocity))
		s.MaxAcceleration = math.Max(s.MaxAcceleration, math.Abs(r.Acceleration))
		s.MaxJerk = math.Max(s.MaxJerk, math.Abs(r.Jerk))
		if r.Fallback {
			s.FallbackCycles++
		}
		if r.Replanned {
			s.Replans++
		}
	}
	if len(records) > 0 {
		s.Final = records[len(records)-1]
		s.Duration = s.Final.Time
	}
	return s
}

func printTraceSummary(w io.Writer, s traceSummary) {
	row := func(label string, v any) {
		fmt.Fprintf(w, "%s%v\n", labelStyle.Render(label), v)
	}
	fmt.Fprintln(w, headerStyle.Render("trace"))
	row("records", s.Records)
	row("duration", s.Duration)
	row("final position", s.Final.Position)
	row("final velocity", s.Final.Velocity)
	row("max |velocity|", s.MaxVelocity)
	row("max |acceleration|", s.MaxAcceleration)
	row("max |jerk|", s.MaxJerk)
	row("replans", s.Replans)
	row("fallback cycles", s.FallbackCycles)
}

func recordFlags(r trace.Record) string {
	f := []string{}
	if r.Replanned {
		f = append(f, "replan")
	}
	if r.Decelerating {
		f = append(f, "decel")
	}
	if r.Fallback {
		f = append(f, "fallback")
	}
	return strings.Join(f, ",")
}

func printRecords(w io.Writer, records []trace.Record) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%12s %14s %14s %14s %14s %s", "time", "position", "velocity", "acceleration", "jerk", "flags")))
	for _, r := range records {
		fmt.Fprintf(w, "%12.6f %14.6f %14.6f %14.6f %14.6f %s\n", r.Time, r.Position, r.Velocity, r.Acceleration, r.Jerk, recordFlags(r))
	}
}

func lastTracePath() (string, error) {
	data, err := params.GetParam(params.LAST_TRACE_PATH)
	if err != nil {
		return "", errors.Wrap(err, "no trace given and no previous simulation recorded one")
	}
	return strings.TrimSpace(string(data)), nil
}

func replay(ctx context.Context, path string) error {
	return replayTo(os.Stdout, path, false)
}

func replayTo(w io.Writer, path string, summaryOnly bool) error {
	if path == "" {
		var err error
		path, err = lastTracePath()
		if err != nil {
			return err
		}
	}
	r, err := trace.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	records, err := r.ReadAll()
	if err != nil {
		return err
	}
	if !summaryOnly {
		printRecords(w, records)
	}
	printTraceSummary(w, summarize(records))
	return nil
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Aliases:   []string{"r"},
		Usage:     "Print a recorded trace, by default the last one simulated",
		ArgsUsage: "[trace file]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "summary", Usage: "Only print the summary"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return replayTo(os.Stdout, cmd.Args().First(), cmd.Bool("summary"))
		},
	}
}
