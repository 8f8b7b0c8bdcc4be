package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"pfeifer.dev/scurve/axis"
)

var (
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	fallbackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	holdStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type outputModel struct {
	output  axis.Output
	target  float64
	time    float64
	hold    bool
	latency float64
	peak    float64
	valid   bool
}

func (m outputModel) update(ax *axis.Axis, out axis.Output, target, t float64, hold bool) outputModel {
	m.output = out
	m.target = target
	m.time = t
	m.hold = hold
	m.latency, m.peak = ax.Latency()
	m.valid = true
	return m
}

func (m outputModel) View() string {
	if !m.valid {
		return panelStyle.Render("waiting for the first cycle")
	}
	status := "tracking"
	switch {
	case m.output.Fallback:
		status = fallbackStyle.Render("fallback")
	case m.hold:
		status = holdStyle.Render("feed hold")
	case m.output.Decelerating:
		status = "decelerating"
	}
	body := fmt.Sprintf(
		"time: %.3f s\ntarget: %.6f\nposition: %.6f\nvelocity: %.6f\nacceleration: %.6f\njerk: %.3f\nposition error: %.3g\nstatus: %s\nupdate latency: %.1f us (peak %.1f us)",
		m.time,
		m.target,
		m.output.Position,
		m.output.Velocity,
		m.output.Acceleration,
		m.output.Jerk,
		m.output.PositionError,
		status,
		m.latency*1e6,
		m.peak*1e6,
	)
	return panelStyle.Render(body)
}
