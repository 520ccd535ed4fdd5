package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/identity"
)

func typeText(t *testing.T, m OnboardingModel, s string) OnboardingModel {
	t.Helper()
	if s == "" {
		return m
	}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(OnboardingModel)
}

func press(t *testing.T, m OnboardingModel, k tea.KeyType) (OnboardingModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(OnboardingModel), cmd
}

// fill types each value into consecutive fields, pressing enter after each.
func fill(t *testing.T, m OnboardingModel, values ...string) (OnboardingModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, v := range values {
		m = typeText(t, m, v)
		m, cmd = press(t, m, tea.KeyEnter)
	}
	return m, cmd
}

// runSubmit executes the batched command and returns the submit message.
func runSubmit(t *testing.T, cmd tea.Cmd) submitMsg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("expected batch message")
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if msg, ok := c().(submitMsg); ok {
			return msg
		}
	}
	t.Fatal("expected submit message in batch")
	return submitMsg{}
}

func TestOnboardingSignUpSubmitsCollectedFields(t *testing.T) {
	var got OnboardingInput
	m := NewOnboardingModel(OnboardingOptions{
		Mode:         ModeSignUp,
		EmailAllowed: func(email string) bool { return strings.HasSuffix(email, "@uwo.ca") },
		Submit: func(_ context.Context, in OnboardingInput) (string, error) {
			got = in
			return "signed up " + in.Email, nil
		},
	})

	m, _ = fill(t, m, "Jane", "Doe", "jane@uwo.ca", "hunter22", "hunter22")
	if m.step != stepProfile {
		t.Fatalf("expected profile step, got %v", m.step)
	}
	m, cmd := fill(t, m, "Computer Science", "3", "", "I sell textbooks")
	if m.step != stepSubmitting {
		t.Fatalf("expected submitting step, got %v", m.step)
	}

	next, quit := m.Update(runSubmit(t, cmd))
	m = next.(OnboardingModel)
	if quit == nil {
		t.Fatal("expected quit after successful submit")
	}

	want := OnboardingInput{
		Mode:     ModeSignUp,
		Email:    "jane@uwo.ca",
		Password: "hunter22",
		Profile: domain.SignUpProfile{
			FirstName:   "Jane",
			LastName:    "Doe",
			Program:     "Computer Science",
			YearOfStudy: "3",
			Bio:         "I sell textbooks",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected submitted input (-want +got):\n%s", diff)
	}
	res := m.Result()
	if res.Cancelled || res.Summary != "signed up jane@uwo.ca" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestOnboardingPasswordMismatchShowsModal(t *testing.T) {
	m := NewOnboardingModel(OnboardingOptions{Mode: ModeSignUp})
	m, _ = fill(t, m, "Jane", "Doe", "jane@uwo.ca", "hunter22", "hunter23")
	if m.modal == nil || m.modal.lines[0] != "Passwords do not match" {
		t.Fatalf("expected mismatch modal, got %+v", m.modal)
	}
	if m.step != stepAccount {
		t.Fatalf("expected to stay on account step, got %v", m.step)
	}
	m, _ = press(t, m, tea.KeyEnter)
	if m.modal != nil {
		t.Fatal("expected enter to dismiss modal")
	}
}

func TestOnboardingRejectsOutsideDomain(t *testing.T) {
	m := NewOnboardingModel(OnboardingOptions{
		Mode:         ModeSignUp,
		EmailAllowed: func(email string) bool { return strings.HasSuffix(email, "@uwo.ca") },
	})
	m, _ = fill(t, m, "Jane", "Doe", "jane@gmail.com", "pw", "pw")
	if m.modal == nil || m.modal.title != "Invalid Email Domain" {
		t.Fatalf("expected domain modal, got %+v", m.modal)
	}
	view := m.View()
	for _, want := range []string{"You entered: jane@gmail.com", "Example: student@uwo.ca"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got %q", want, view)
		}
	}
}

func TestOnboardingRequiresProgramAndYear(t *testing.T) {
	m := NewOnboardingModel(OnboardingOptions{Mode: ModeSignUp})
	m, _ = fill(t, m, "Jane", "Doe", "jane@uwo.ca", "pw", "pw")
	m, cmd := fill(t, m, "", "", "", "")
	if cmd != nil {
		t.Fatal("expected no submit without a program")
	}
	if m.modal == nil || m.modal.lines[0] != "Please enter your program" {
		t.Fatalf("expected program modal, got %+v", m.modal)
	}
	m, _ = press(t, m, tea.KeyEsc)
	m, _ = press(t, m, tea.KeyTab)
	if m.focus != fieldProgram {
		t.Fatalf("expected tab to wrap to program, got %d", m.focus)
	}
	m = typeText(t, m, "Engineering")
	m, _ = press(t, m, tea.KeyEnter)
	m, _ = fill(t, m, "", "", "")
	if m.modal == nil || m.modal.lines[0] != "Please enter your year of study" {
		t.Fatalf("expected year modal, got %+v", m.modal)
	}
}

func TestOnboardingSubmitErrorReturnsToForm(t *testing.T) {
	m := NewOnboardingModel(OnboardingOptions{
		Mode: ModeSignIn,
		Submit: func(context.Context, OnboardingInput) (string, error) {
			return "", identity.NewError(identity.CodeInvalidCredentials, "Invalid login credentials")
		},
	})
	m, cmd := fill(t, m, "jane@uwo.ca", "wrong")
	next, _ := m.Update(runSubmit(t, cmd))
	m = next.(OnboardingModel)
	if m.step != stepAccount {
		t.Fatalf("expected account step after failure, got %v", m.step)
	}
	if m.modal == nil || m.modal.title != "Error" || m.modal.lines[0] != "Invalid login credentials" {
		t.Fatalf("unexpected modal %+v", m.modal)
	}
}

func TestOnboardingSwitchModeAndCancel(t *testing.T) {
	m := NewOnboardingModel(OnboardingOptions{Mode: ModeSignUp})
	m, _ = press(t, m, tea.KeyCtrlT)
	if m.mode != ModeSignIn || m.focus != fieldEmail {
		t.Fatalf("expected sign in focused on email, got mode=%v focus=%d", m.mode, m.focus)
	}
	m, cmd := press(t, m, tea.KeyEsc)
	if cmd == nil || !m.Result().Cancelled {
		t.Fatal("expected esc to cancel")
	}
}

func TestProgressModelReportsActionResult(t *testing.T) {
	m := newProgressModel("seed", func(context.Context) ([]string, error) { return []string{"created 3"}, nil })
	next, cmd := m.Update(actionMsg{details: []string{"created 3"}})
	pm := next.(progressModel)
	if cmd == nil || !pm.done {
		t.Fatal("expected model to finish")
	}
	if !strings.Contains(pm.View(), "created 3") {
		t.Fatalf("expected details in view, got %q", pm.View())
	}
}
