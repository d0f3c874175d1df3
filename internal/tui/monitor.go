package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lizqwerscott/ocs2-ros2/internal/mpc"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
)

const visibleRows = 8

// IterationMsg carries one solver iteration into the monitor.
type IterationMsg slq.IterationRecord

// StepMsg carries one receding-horizon step into the monitor.
type StepMsg mpc.Step

// DoneMsg ends the run. Err is nil on success.
type DoneMsg struct {
	Err error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Monitor is the bubbletea model behind the --live flag. Feed it with
// Program.Send from the solver observers.
type Monitor struct {
	title   string
	scene   *Scene
	records []slq.IterationRecord
	steps   []mpc.Step
	costs   []float64
	ise     []float64
	started time.Time
	elapsed time.Duration
	done    bool
	err     error
	width   int
}

func NewMonitor(title, model string) Monitor {
	return Monitor{
		title:   title,
		scene:   NewScene(model),
		started: time.Now(),
		width:   80,
	}
}

func (m Monitor) Init() tea.Cmd { return tick() }

func (m Monitor) Err() error { return m.err }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case IterationMsg:
		r := slq.IterationRecord(msg)
		m.records = append(m.records, r)
		m.costs = append(m.costs, r.Performance.Cost)
		m.ise = append(m.ise, r.Performance.ISE1)
	case StepMsg:
		s := mpc.Step(msg)
		m.steps = append(m.steps, s)
		m.costs = append(m.costs, s.Cost)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.elapsed = time.Since(m.started)
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Since(m.started)
		return m, tick()
	}
	return m, nil
}

func (m Monitor) View() string {
	var b strings.Builder
	b.WriteString(title.Render(m.title))
	b.WriteString("  ")
	b.WriteString(dim.Render(m.elapsed.Round(time.Millisecond).String()))
	b.WriteString("  ")
	b.WriteString(m.status())
	b.WriteString("\n\n")

	if len(m.steps) > 0 {
		b.WriteString(m.mpcView())
	} else {
		b.WriteString(m.iterationView())
	}

	width := max(m.width-12, 20)
	if plot := Plot(m.costs, "cost", 8, width); plot != "" {
		b.WriteString("\n")
		b.WriteString(plot)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Monitor) status() string {
	switch {
	case m.err != nil:
		return red.Render("failed: " + m.err.Error())
	case m.done:
		return green.Render("done")
	default:
		return yellow.Render("running")
	}
}

func (m Monitor) iterationView() string {
	rows := []string{white.Render(fmt.Sprintf("%4s  %12s  %12s  %12s  %6s  %-10s", "iter", "cost", "merit", "ise1", "rate", "step"))}
	start := max(0, len(m.records)-visibleRows)
	for _, r := range m.records[start:] {
		p := r.Performance
		rows = append(rows, fmt.Sprintf("%4d  %12.6g  %12.6g  %12.3e  %6.3f  %-10s",
			r.Iteration, p.Cost, p.Merit, p.ISE1, r.LearningRate, stepStyle(r.StepType)))
	}
	return box.Render(strings.Join(rows, "\n")) + "\n"
}

func (m Monitor) mpcView() string {
	last := m.steps[len(m.steps)-1]
	var b strings.Builder
	b.WriteString(m.scene.Draw(last.State))
	b.WriteString(cyan.Render(fmt.Sprintf("t=%.2fs", last.Time)))
	for i, v := range last.State {
		if i >= 6 {
			break
		}
		b.WriteString(fmt.Sprintf("  x%d=%.3f", i, v))
	}
	b.WriteString("\n")
	b.WriteString(dim.Render(fmt.Sprintf("solves=%d  iterations=%d  rewinds=%d", len(m.steps), last.Iterations, last.Rewinds)))
	b.WriteString("\n")
	return b.String()
}

func stepStyle(step string) string {
	switch step {
	case "cost":
		return green.Render(step)
	case "constraint", "dual":
		return magenta.Render(step)
	case "zero":
		return yellow.Render(step)
	default:
		return dim.Render(step)
	}
}
