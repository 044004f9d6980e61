package alertview_test

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/ui/alertview"
)

func sample(title string) alert.Alert {
	return alert.Alert{
		Title:         title,
		Lines:         []alert.Line{{Label: "Hospital", Value: "Siriraj Hospital"}},
		NavigateLabel: "View bookings",
		Route:         "/staff/bookings",
		DismissLabel:  "Dismiss",
	}
}

// resolved runs a batched command and returns the ResolvedMsg in it.
func resolved(t *testing.T, cmd tea.Cmd) alertview.ResolvedMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if r, ok := c().(alertview.ResolvedMsg); ok {
				return r
			}
		}
	}
	r, ok := msg.(alertview.ResolvedMsg)
	require.True(t, ok, "no ResolvedMsg in %T", msg)
	return r
}

func TestQueueShowsOneAtATime(t *testing.T) {
	m := alertview.New(80)
	m.Push(sample("first"))
	m.Push(sample("second"))

	assert.True(t, m.Active())
	assert.Equal(t, 2, m.Pending())
	assert.Contains(t, m.View(), "first")
	assert.Contains(t, m.View(), "1 more alert(s) waiting")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	r := resolved(t, cmd)
	assert.Equal(t, "first", r.Alert.Title)
	assert.Equal(t, alert.ActionDismiss, r.Action)

	assert.Equal(t, 1, m.Pending())
	assert.Contains(t, m.View(), "second")
}

func TestNavigateChoice(t *testing.T) {
	m := alertview.New(80)
	m.Push(sample("first"))

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")})
	r := resolved(t, cmd)
	assert.Equal(t, alert.ActionNavigate, r.Action)
	assert.Equal(t, "/staff/bookings", r.Alert.Route)
	assert.False(t, m.Active())
}

func TestDismissAll(t *testing.T) {
	m := alertview.New(80)
	m.Push(sample("first"))
	m.Push(sample("second"))
	m.DismissAll()

	assert.False(t, m.Active())
	assert.Empty(t, m.View())
}
