package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qs3c/bug_triage_server/internal/pkg/ws"
)

const (
	historySize = 6
	maxBarWidth = 72
	percentDone = 100
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	historyStyle = lipgloss.NewStyle().Faint(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	doneStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type eventMsg ws.Event

type closedMsg struct{ err error }

type model struct {
	jobID   string
	events  <-chan ws.Event
	closed  <-chan error
	bar     progress.Model
	percent int
	status  string
	history []string
	seen    bool
	done    bool
	err     error
}

func newModel(jobID string, events <-chan ws.Event, closed <-chan error) model {
	return model{
		jobID:  jobID,
		events: events,
		closed: closed,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		status: "waiting for progress...",
	}
}

func (m model) Init() tea.Cmd {
	return m.listen()
}

// listen 等待下一帧；通道关闭后取连接的关闭原因
func (m model) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			var err error
			if m.closed != nil {
				err = <-m.closed
			}
			return closedMsg{err: err}
		}
		return eventMsg(ev)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		w := msg.Width - 4
		if w > maxBarWidth {
			w = maxBarWidth
		}
		if w > 10 {
			m.bar.Width = w
		}
	case eventMsg:
		if m.seen {
			m.history = append(m.history, m.status)
			if len(m.history) > historySize {
				m.history = m.history[len(m.history)-historySize:]
			}
		}
		m.seen = true
		m.status = msg.Status
		if msg.Percent != nil && *msg.Percent > m.percent {
			m.percent = *msg.Percent
		}
		if m.percent >= percentDone {
			m.done = true
			return m, tea.Quit
		}
		return m, m.listen()
	case closedMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Job " + m.jobID))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(float64(m.percent) / percentDone))
	b.WriteString("\n\n")

	for _, h := range m.history {
		b.WriteString(historyStyle.Render("  " + h))
		b.WriteString("\n")
	}
	status := statusStyle
	if strings.HasSuffix(m.status, "failed") {
		status = failedStyle
	}
	b.WriteString(status.Render(fmt.Sprintf("> %s", m.status)))
	b.WriteString("\n\n")

	switch {
	case m.done:
		b.WriteString(doneStyle.Render("Analysis complete."))
	case m.err != nil:
		b.WriteString(failedStyle.Render("Connection lost: " + m.err.Error()))
	default:
		b.WriteString(helpStyle.Render("q to quit"))
	}
	b.WriteString("\n")
	return b.String()
}
