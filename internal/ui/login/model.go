package login

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shuttledesk/internal/source"
	"github.com/nhle/shuttledesk/internal/theme"
)

// SubmitMsg is dispatched when the form is completed.
type SubmitMsg struct {
	Credentials source.Credentials

	// Remember keeps the identity in the system keyring across launches.
	Remember bool
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
	remember bool
}

// Model is the sign-in form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	baseURL string
	errText string
	busy    bool
	width   int
	height  int
}

// New creates a sign-in form for the backend at baseURL.
func New(baseURL string, width, height int) Model {
	return Model{
		fb:      &formBindings{},
		baseURL: baseURL,
		width:   width,
		height:  height,
	}
}

// Start (re)builds the form. The email is kept; the password is cleared.
func (m *Model) Start() tea.Cmd {
	m.fb.password = ""
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// SetError shows a failed sign-in above the form and rebuilds it.
func (m *Model) SetError(err error) tea.Cmd {
	m.errText = describe(err)
	return m.Start()
}

// SetBusy marks the form as waiting for the backend.
func (m *Model) SetBusy(busy bool) {
	m.busy = busy
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.busy = true
		m.errText = ""
		sub := SubmitMsg{
			Credentials: source.Credentials{
				Email:    strings.TrimSpace(m.fb.email),
				Password: m.fb.password,
			},
			Remember: m.fb.remember,
		}
		return m, func() tea.Msg { return sub }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	parts := []string{
		theme.TitleStyle.Render("Sign in to shuttle booking"),
		theme.HelpStyle.Render(m.baseURL),
	}
	if m.errText != "" {
		parts = append(parts, theme.WarningStyle.Render(m.errText))
	}
	if m.busy {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	} else {
		parts = append(parts, m.form.View())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@hospital.example").
				Value(&m.fb.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Remember me on this device?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.remember),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 72)
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

// describe turns a sign-in failure into a one-line message.
func describe(err error) string {
	if err == nil {
		return ""
	}
	if source.IsAuthError(err) {
		return "Incorrect email or password."
	}
	return "Sign-in failed: " + err.Error()
}
