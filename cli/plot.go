package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"pfeifer.dev/scurve/trace"
)

// series holds the sampled kinematics of one trajectory.
type series struct {
	Time         []float64
	Position     []float64
	Velocity     []float64
	Acceleration []float64
	Jerk         []float64
}

func (s *series) add(t, pos, vel, acc, jerk float64) {
	s.Time = append(s.Time, t)
	s.Position = append(s.Position, pos)
	s.Velocity = append(s.Velocity, vel)
	s.Acceleration = append(s.Acceleration, acc)
	s.Jerk = append(s.Jerk, jerk)
}

func seriesFromSamples(samples []timedSample) series {
	s := series{}
	for _, sm := range samples {
		s.add(sm.Time, sm.Position, sm.Velocity, sm.Acceleration, sm.Jerk)
	}
	return s
}

func seriesFromRecords(records []trace.Record) series {
	s := series{}
	for _, r := range records {
		s.add(r.Time, r.Position, r.Velocity, r.Acceleration, r.Jerk)
	}
	return s
}

func savePlotPNG(p *plot.Plot, width, height vg.Length, filename string) error {
	c := vgimg.NewWith(
		vgimg.UseWH(width, height),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "could not create png")
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return errors.Wrap(err, "could not write png")
	}
	return errors.Wrap(bw.Flush(), "could not flush png")
}

func saveLinePlot(filename, title, ylabel string, xs, ys []float64) error {
	if len(xs) != len(ys) || len(xs) == 0 {
		return errors.New("plot data invalid")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrapf(err, "could not build %s line", title)
	}
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)

	return savePlotPNG(p, 8*vg.Inch, 4*vg.Inch, filename)
}

// writePlots renders one png per derivative into dir and returns their paths.
func writePlots(dir string, s series) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "could not create plot directory")
	}
	plots := []struct {
		name, unit string
		ys         []float64
	}{
		{"position", "x", s.Position},
		{"velocity", "x/s", s.Velocity},
		{"acceleration", "x/s^2", s.Acceleration},
		{"jerk", "x/s^3", s.Jerk},
	}
	paths := []string{}
	for _, pl := range plots {
		path := filepath.Join(dir, pl.name+".png")
		if err := saveLinePlot(path, pl.name, fmt.Sprintf("%s (%s)", pl.name, pl.unit), s.Time, pl.ys); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func plotCommand() *cli.Command {
	flags := append(moveFlags(),
		&cli.StringFlag{
			Category: "Output",
			Name:     "output-directory",
			Aliases:  []string{"o"},
			Usage:    "Directory to write the png files to",
			Value:    "./plots",
		},
		&cli.StringFlag{
			Category: "Inputs",
			Name:     "trace",
			Usage:    "Plot a recorded trace instead of planning a move",
		},
		&cli.Float64Flag{
			Category: "Output",
			Name:     "sample-interval",
			Usage:    "Sample spacing in seconds when plotting a planned move (defaults to the cycle time)",
		},
	)
	return &cli.Command{
		Name:  "plot",
		Usage: "Render position, velocity, acceleration and jerk to png",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var s series
			if path := cmd.String("trace"); path != "" {
				r, err := trace.Open(path)
				if err != nil {
					return err
				}
				defer r.Close()
				records, err := r.ReadAll()
				if err != nil {
					return err
				}
				s = seriesFromRecords(records)
			} else {
				p, err := moveFromCommand(cmd).plan()
				if err != nil {
					return err
				}
				defer p.Close()
				interval := cmd.Float64("sample-interval")
				if interval <= 0 {
					interval = p.CycleTime()
				}
				samples, err := sampleEvery(p, interval)
				if err != nil {
					return err
				}
				s = seriesFromSamples(samples)
			}
			paths, err := writePlots(cmd.String("output-directory"), s)
			for _, path := range paths {
				fmt.Println(path)
			}
			return err
		},
	}
}
