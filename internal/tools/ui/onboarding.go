package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/identity"
)

type Mode int

const (
	ModeSignUp Mode = iota
	ModeSignIn
)

func (m Mode) String() string {
	if m == ModeSignIn {
		return "Sign In"
	}
	return "Sign Up"
}

// OnboardingInput is what the form collected when it was submitted.
type OnboardingInput struct {
	Mode     Mode
	Email    string
	Password string
	Profile  domain.SignUpProfile
}

// SubmitFunc performs the sign-up or sign-in and returns a one line summary.
type SubmitFunc func(ctx context.Context, in OnboardingInput) (string, error)

type OnboardingOptions struct {
	Mode   Mode
	Submit SubmitFunc
	// EmailAllowed rejects an email before the profile step. Optional.
	EmailAllowed func(email string) bool
	// Example is shown in the invalid domain modal.
	Example string
}

type OnboardingResult struct {
	Input     OnboardingInput
	Summary   string
	Cancelled bool
}

const (
	fieldFirstName = iota
	fieldLastName
	fieldEmail
	fieldPassword
	fieldConfirm
	fieldProgram
	fieldYear
	fieldSocials
	fieldAbout
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldFirstName: "First Name",
	fieldLastName:  "Last Name",
	fieldEmail:     "Your email address",
	fieldPassword:  "Choose a password",
	fieldConfirm:   "Confirm password",
	fieldProgram:   "Program?",
	fieldYear:      "Year Of Study",
	fieldSocials:   "Socials",
	fieldAbout:     "About You",
}

type step int

const (
	stepAccount step = iota
	stepProfile
	stepSubmitting
	stepDone
)

type modal struct {
	title string
	lines []string
}

type submitMsg struct {
	summary string
	err     error
}

var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(1, 2)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
)

var errPasswordMismatch = errors.New("passwords do not match")

// OnboardingModel is the sign-up and sign-in form.
type OnboardingModel struct {
	opts    OnboardingOptions
	mode    Mode
	step    step
	inputs  [fieldCount]textinput.Model
	focus   int
	modal   *modal
	spin    spinner.Model
	result  OnboardingResult
	working bool
}

func NewOnboardingModel(opts OnboardingOptions) OnboardingModel {
	if opts.Example == "" {
		opts.Example = "student@uwo.ca"
	}
	m := OnboardingModel{
		opts: opts,
		mode: opts.Mode,
		spin: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(mutedStyle)),
	}
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 256
		switch i {
		case fieldPassword, fieldConfirm:
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		case fieldAbout:
			in.CharLimit = 2048
		case fieldSocials:
			in.Placeholder = "phone or handle"
		}
		m.inputs[i] = in
	}
	m.focus = m.visible()[0]
	m.inputs[m.focus].Focus()
	return m
}

// visible lists the fields of the current step in tab order.
func (m OnboardingModel) visible() []int {
	if m.mode == ModeSignIn {
		return []int{fieldEmail, fieldPassword}
	}
	if m.step == stepProfile {
		return []int{fieldProgram, fieldYear, fieldSocials, fieldAbout}
	}
	return []int{fieldFirstName, fieldLastName, fieldEmail, fieldPassword, fieldConfirm}
}

func (m OnboardingModel) Result() OnboardingResult { return m.result }

func (m OnboardingModel) Init() tea.Cmd { return textinput.Blink }

func (m OnboardingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case submitMsg:
		m.working = false
		if msg.err != nil {
			m.step = m.stepBeforeSubmit()
			m.modal = errorModal(msg.err, m.inputs[fieldEmail].Value(), m.opts.Example)
			return m, nil
		}
		m.step = stepDone
		m.result.Summary = msg.summary
		return m, tea.Quit
	case spinner.TickMsg:
		if !m.working {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m.updateFocused(msg)
}

func (m OnboardingModel) stepBeforeSubmit() step {
	if m.mode == ModeSignIn {
		return stepAccount
	}
	return stepProfile
}

func (m OnboardingModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.result.Cancelled = true
		return m, tea.Quit
	}
	if m.modal != nil {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.modal = nil
		}
		return m, nil
	}
	if m.step == stepSubmitting || m.step == stepDone {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyEsc:
		if m.step == stepProfile {
			return m.moveTo(stepAccount), nil
		}
		m.result.Cancelled = true
		return m, tea.Quit
	case tea.KeyCtrlT:
		if m.step == stepAccount {
			if m.mode == ModeSignIn {
				m.mode = ModeSignUp
			} else {
				m.mode = ModeSignIn
			}
			return m.moveTo(stepAccount), nil
		}
	case tea.KeyTab, tea.KeyDown:
		return m.cycle(1), nil
	case tea.KeyShiftTab, tea.KeyUp:
		return m.cycle(-1), nil
	case tea.KeyEnter:
		fields := m.visible()
		if m.focus != fields[len(fields)-1] {
			return m.cycle(1), nil
		}
		return m.advance()
	}
	return m.updateFocused(msg)
}

func (m OnboardingModel) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m OnboardingModel) cycle(delta int) OnboardingModel {
	fields := m.visible()
	idx := 0
	for i, f := range fields {
		if f == m.focus {
			idx = i
		}
	}
	idx = (idx + delta + len(fields)) % len(fields)
	return m.focusField(fields[idx])
}

func (m OnboardingModel) focusField(field int) OnboardingModel {
	m.inputs[m.focus].Blur()
	m.focus = field
	m.inputs[m.focus].Focus()
	return m
}

func (m OnboardingModel) moveTo(s step) OnboardingModel {
	m.step = s
	return m.focusField(m.visible()[0])
}

// advance validates the current step and either opens the next one or submits.
func (m OnboardingModel) advance() (tea.Model, tea.Cmd) {
	if m.mode == ModeSignUp && m.step == stepAccount {
		if m.value(fieldPassword) != m.value(fieldConfirm) {
			m.modal = errorModal(errPasswordMismatch, "", "")
			return m, nil
		}
		if m.opts.EmailAllowed != nil && !m.opts.EmailAllowed(m.value(fieldEmail)) {
			m.modal = errorModal(identity.ErrInvalidEmailDomain, m.value(fieldEmail), m.opts.Example)
			return m, nil
		}
		return m.moveTo(stepProfile), nil
	}

	in := m.input()
	if m.mode == ModeSignUp {
		if err := in.Profile.Validate(); err != nil {
			m.modal = errorModal(err, "", "")
			return m, nil
		}
	}
	m.result.Input = in
	if m.opts.Submit == nil {
		m.step = stepDone
		return m, tea.Quit
	}
	m.step = stepSubmitting
	m.working = true
	submit := m.opts.Submit
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		summary, err := submit(ctx, in)
		return submitMsg{summary: summary, err: err}
	})
}

func (m OnboardingModel) value(field int) string {
	return m.inputs[field].Value()
}

func (m OnboardingModel) input() OnboardingInput {
	in := OnboardingInput{
		Mode:     m.mode,
		Email:    strings.TrimSpace(m.value(fieldEmail)),
		Password: m.value(fieldPassword),
	}
	if m.mode == ModeSignUp {
		in.Profile = domain.SignUpProfile{
			FirstName:   strings.TrimSpace(m.value(fieldFirstName)),
			LastName:    strings.TrimSpace(m.value(fieldLastName)),
			Program:     strings.TrimSpace(m.value(fieldProgram)),
			YearOfStudy: strings.TrimSpace(m.value(fieldYear)),
			Bio:         strings.TrimSpace(m.value(fieldAbout)),
			PhoneNumber: strings.TrimSpace(m.value(fieldSocials)),
		}
	}
	return in
}

func errorModal(err error, email, example string) *modal {
	switch {
	case errors.Is(err, identity.ErrInvalidEmailDomain):
		return &modal{
			title: "Invalid Email Domain",
			lines: []string{
				"Please use a valid school email address to sign up.",
				"You entered: " + email,
				"Only students with official school email addresses can create an account.",
				"Example: " + example,
			},
		}
	case errors.Is(err, domain.ErrProgramRequired):
		return &modal{title: "Error", lines: []string{"Please enter your program"}}
	case errors.Is(err, domain.ErrYearOfStudyRequired):
		return &modal{title: "Error", lines: []string{"Please enter your year of study"}}
	case errors.Is(err, errPasswordMismatch):
		return &modal{title: "Error", lines: []string{"Passwords do not match"}}
	}
	msg := identity.Message(err)
	if msg == "" {
		msg = "An error occurred. Please try again."
	}
	return &modal{title: "Error", lines: []string{msg}}
}

func (m OnboardingModel) View() string {
	var b strings.Builder
	heading := m.mode.String()
	if m.step == stepProfile {
		heading = "Set Up Your Profile"
	}
	b.WriteString(titleStyle.Render(heading) + "\n\n")

	if m.modal != nil {
		body := activeStyle.Render(m.modal.title) + "\n\n" + strings.Join(m.modal.lines, "\n") + "\n\n" + mutedStyle.Render("[ OK ] enter")
		b.WriteString(modalStyle.Render(body) + "\n")
		return b.String()
	}
	if m.step == stepSubmitting {
		fmt.Fprintf(&b, "%s submitting...\n", m.spin.View())
		return b.String()
	}
	if m.step == stepDone {
		b.WriteString(okStyle.Render(m.result.Summary) + "\n")
		return b.String()
	}

	for _, f := range m.visible() {
		label := labelStyle.Render(fieldLabels[f])
		if f == m.focus {
			label = activeStyle.Render(fieldLabels[f])
		}
		fmt.Fprintf(&b, "%s\n%s\n\n", label, m.inputs[f].View())
	}
	help := "tab next · enter continue · esc cancel"
	if m.step == stepAccount {
		help += " · ctrl+t switch to "
		if m.mode == ModeSignIn {
			help += ModeSignUp.String()
		} else {
			help += ModeSignIn.String()
		}
	} else {
		help = "tab next · enter submit · esc back"
	}
	b.WriteString(mutedStyle.Render(help) + "\n")
	return b.String()
}

// RunOnboarding runs the form until it is submitted or cancelled.
func RunOnboarding(opts OnboardingOptions) (OnboardingResult, error) {
	final, err := tea.NewProgram(NewOnboardingModel(opts)).Run()
	if err != nil {
		return OnboardingResult{}, err
	}
	return final.(OnboardingModel).Result(), nil
}
