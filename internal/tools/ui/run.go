package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const actionTimeout = 2 * time.Minute

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type actionMsg struct {
	details []string
	err     error
}

type progressModel struct {
	title   string
	spin    spinner.Model
	details []string
	err     error
	done    bool
	action  func(context.Context) ([]string, error)
}

func newProgressModel(title string, action func(context.Context) ([]string, error)) progressModel {
	return progressModel{
		title:  title,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(mutedStyle)),
		action: action,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, runAction(m.action))
}

func runAction(action func(context.Context) ([]string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		details, err := action(ctx)
		return actionMsg{details: details, err: err}
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.err = context.Canceled
			m.done = true
			return m, tea.Quit
		}
	case actionMsg:
		m.details = msg.details
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	title := titleStyle.Render(m.title)
	if !m.done {
		return fmt.Sprintf("%s\n\n%s working...\n", title, m.spin.View())
	}
	var b strings.Builder
	if m.err != nil {
		fmt.Fprintf(&b, "%s\n%s: %v\n", title, failStyle.Render("FAILED"), m.err)
	} else {
		fmt.Fprintf(&b, "%s\n%s\n", title, okStyle.Render("OK"))
	}
	for _, d := range m.details {
		b.WriteString("- " + d + "\n")
	}
	return b.String()
}

// Run shows a spinner while action runs and returns its result.
func Run(title string, action func(context.Context) ([]string, error)) ([]string, error) {
	final, err := tea.NewProgram(newProgressModel(title, action)).Run()
	if err != nil {
		return nil, err
	}
	res := final.(progressModel)
	return res.details, res.err
}
