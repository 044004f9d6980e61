package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/notify"
	"github.com/nhle/shuttledesk/internal/ui/command"
)

// statusFilters maps the "filter ..." command argument to a status token.
var statusFilters = map[string]string{
	"all":       "",
	"pending":   model.StatusPending,
	"approved":  model.StatusApproved,
	"rejected":  model.StatusRejected,
	"cancelled": model.StatusCancelled,
}

// executeCommand handles a command string from the command palette.
func (m Model) executeCommand(cmd string) (Model, tea.Cmd) {
	switch cmd {
	case "refresh", "poll":
		m.hint = ""
		return m, m.core.Poller.RefreshNow()
	case "notifications", "feed":
		m.currentView = ViewFeed
		return m, nil
	case "bookings", "dashboard":
		m.currentView = ViewBookings
		return m, nil
	case "mark read", "read":
		return m, m.markAllRead()
	case "clear":
		return m, m.clearAll()
	case "logout":
		return m.logout()
	case "quit", "q":
		m.core.End()
		return m, tea.Quit
	}

	if arg, ok := strings.CutPrefix(cmd, "filter "); ok {
		status, known := statusFilters[arg]
		if !known {
			m.hint = fmt.Sprintf("unknown status %q", arg)
			return m, nil
		}
		m.currentView = ViewBookings
		fcmd := m.bookingsView.SetFilter(status)
		return m, fcmd
	}

	m.hint = fmt.Sprintf("unknown command %q", cmd)
	return m, nil
}

func joinCommands() string {
	return strings.Join(command.Commands, ", ")
}

func (m Model) markAllRead() tea.Cmd {
	n := m.core.Notifier
	return func() tea.Msg {
		changed, err := n.MarkAllRead(context.Background())
		if err != nil {
			return feedChangedMsg{hint: err.Error()}
		}
		return feedChangedMsg{hint: fmt.Sprintf("marked %d read", changed)}
	}
}

func (m Model) deleteOne(eventID string) tea.Cmd {
	n := m.core.Notifier
	return func() tea.Msg {
		err := n.DeleteOne(context.Background(), eventID)
		if errors.Is(err, notify.ErrEntryNotFound) {
			return feedChangedMsg{hint: "notification already removed"}
		}
		if err != nil {
			return feedChangedMsg{hint: err.Error()}
		}
		return feedChangedMsg{}
	}
}

func (m Model) clearAll() tea.Cmd {
	n := m.core.Notifier
	return func() tea.Msg {
		if err := n.ClearAll(context.Background()); err != nil {
			return feedChangedMsg{hint: err.Error()}
		}
		return feedChangedMsg{hint: "notifications cleared"}
	}
}

// reloadFeed re-reads the feed after another process wrote it.
func (m Model) reloadFeed() tea.Cmd {
	n := m.core.Notifier
	logger := m.logger
	return func() tea.Msg {
		if err := n.Reload(context.Background()); err != nil && !errors.Is(err, notify.ErrNoIdentity) {
			logger.Warn("reloading feed failed", "err", err)
		}
		return feedChangedMsg{}
	}
}
