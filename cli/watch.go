package cli

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"pfeifer.dev/scurve/axis"
	ms "pfeifer.dev/scurve/settings"
)

type watchState int

const (
	showAxis watchState = iota
	showMenu
	showTargetInput
)

const tickInterval = 50 * time.Millisecond

var docStyle = lipgloss.NewStyle().Margin(1, 2)

type TickMsg time.Time

func tickEvery() tea.Cmd {
	return tea.Every(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

type action int

const (
	actionTarget action = iota
	actionHold
	actionJogStep
	actionSave
	actionQuit
)

type item struct {
	title, desc string
	action      action
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

type watchModel struct {
	ax      *axis.Axis
	cmd     axis.Command
	hold    bool
	jogStep float64
	cycles  int
	state   watchState
	action  action
	list    list.Model
	input   textinput.Model
	output  outputModel
	err     error
	fatal   error
}

func newWatchModel() (watchModel, error) {
	ax, err := axis.New(ms.Settings.CycleTime,
		axis.WithStart(loadLastState()),
		axis.WithTolerances(ms.Settings.Tolerances),
		axis.WithParamEpsilon(ms.Settings.ParamEpsilon),
	)
	if err != nil {
		return watchModel{}, err
	}
	lim := ms.Settings.Limits()
	items := []list.Item{
		item{title: "Set Target", desc: "Move the axis to a new position", action: actionTarget},
		item{title: "Feed Hold", desc: "Stop the axis, or resume the move when already holding", action: actionHold},
		item{title: "Jog Step", desc: "Distance moved by the left and right keys", action: actionJogStep},
		item{title: "Save State", desc: "Persist the axis state so the next session starts from it", action: actionSave},
		item{title: "Quit", desc: "Leave the watch view", action: actionQuit},
	}
	ti := textinput.New()
	ti.CharLimit = 32

	m := watchModel{
		ax: ax,
		cmd: axis.Command{
			TargetPosition:  ax.State().Position,
			MinVelocity:     lim.MinVelocity,
			MaxVelocity:     lim.MaxVelocity,
			MaxAcceleration: lim.MaxAcceleration,
			MaxJerk:         lim.MaxJerk,
		},
		jogStep: 1,
		list:    list.New(items, list.NewDefaultDelegate(), 0, 0),
		input:   ti,
	}
	m.list.Title = "Axis Actions"
	return m, nil
}

func (m watchModel) Init() tea.Cmd {
	return tickEvery()
}

// cyclesPerTick keeps simulation time in step with wall time.
func cyclesPerTick(cycleTime float64) int {
	return max(1, int(math.Round(tickInterval.Seconds()/cycleTime)))
}

func (m watchModel) run() (watchModel, error) {
	cmd := m.cmd
	cmd.VelocityControl = m.hold
	var out axis.Output
	for range cyclesPerTick(ms.Settings.CycleTime) {
		var err error
		out, err = m.ax.Update(cmd)
		if err != nil {
			return m, err
		}
		m.cycles++
	}
	m.output = m.output.update(m.ax, out, m.cmd.TargetPosition, float64(m.cycles)*ms.Settings.CycleTime, m.hold)
	return m, nil
}

func (m watchModel) apply(a action) (watchModel, tea.Cmd) {
	m.action = a
	switch a {
	case actionTarget, actionJogStep:
		m.state = showTargetInput
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	case actionHold:
		m.hold = !m.hold
	case actionSave:
		saveLastState(m.ax.State(), "")
		slog.Info("axis state saved", "position", m.ax.State().Position)
	case actionQuit:
		return m, tea.Quit
	}
	m.state = showAxis
	return m, nil
}

func (m watchModel) submit() watchModel {
	v, err := strconv.ParseFloat(m.input.Value(), 64)
	m.input.Blur()
	m.state = showAxis
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		m.err = errors.Errorf("%q is not a number", m.input.Value())
		return m
	}
	m.err = nil
	if m.action == actionJogStep {
		m.jogStep = math.Abs(v)
	} else {
		m.cmd.TargetPosition = v
	}
	return m
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case showAxis:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "left":
				m.cmd.TargetPosition -= m.jogStep
			case "right":
				m.cmd.TargetPosition += m.jogStep
			case " ", "h":
				m.hold = !m.hold
			case "t":
				return m.apply(actionTarget)
			case "m", "enter":
				m.state = showMenu
			}
			return m, nil
		case showTargetInput:
			switch msg.Type {
			case tea.KeyEnter:
				return m.submit(), nil
			case tea.KeyEsc:
				m.input.Blur()
				m.state = showAxis
				return m, nil
			}
		case showMenu:
			if msg.Type == tea.KeyEsc && m.list.FilterState() != list.Filtering {
				m.state = showAxis
				return m, nil
			}
			if msg.Type == tea.KeyEnter && m.list.FilterState() != list.Filtering {
				return m.apply(m.list.SelectedItem().(item).action)
			}
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	case TickMsg:
		var err error
		m, err = m.run()
		if err != nil {
			m.fatal = err
			return m, tea.Quit
		}
		return m, tickEvery()
	}

	var cmd tea.Cmd
	switch m.state {
	case showTargetInput:
		m.input, cmd = m.input.Update(msg)
	case showMenu:
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m watchModel) View() string {
	switch m.state {
	case showMenu:
		return docStyle.Render(m.list.View())
	case showTargetInput:
		label := "New target position"
		if m.action == actionJogStep {
			label = "New jog step"
		}
		return docStyle.Render(fmt.Sprintf("%s\n\n%s\n\n%s", label, m.input.View(), "(esc to cancel)") + "\n")
	}
	view := m.output.View() + "\n" + helpStyle.Render(fmt.Sprintf("←/→ jog %g • t target • space hold • m menu • q quit", m.jogStep))
	if m.err != nil {
		view += "\n" + errorStyle.Render(m.err.Error())
	}
	return docStyle.Render(view)
}

func watch() error {
	m, err := newWatchModel()
	if err != nil {
		return err
	}
	defer m.ax.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return errors.Wrap(err, "watch view failed")
	}
	if wm, ok := final.(watchModel); ok {
		saveLastState(wm.ax.State(), "")
		return wm.fatal
	}
	return nil
}
