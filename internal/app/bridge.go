package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shuttledesk/internal/alert"
)

// errAlertQueueFull is returned when the UI has fallen too far behind.
var errAlertQueueFull = errors.New("alert queue full")

// alertMsg carries one alert from the poller goroutine to the UI.
type alertMsg struct {
	alert alert.Alert
}

// alertBridge is the Dispatcher that feeds the TUI's alert modal.
type alertBridge struct {
	ch chan alert.Alert
}

func newAlertBridge(size int) *alertBridge {
	return &alertBridge{ch: make(chan alert.Alert, size)}
}

// Dispatch queues a for the UI without blocking the poller.
func (b *alertBridge) Dispatch(ctx context.Context, a alert.Alert) error {
	select {
	case b.ch <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errAlertQueueFull
	}
}

// WaitForAlert returns a tea.Cmd that waits for the next alert. Call it
// again after handling each alertMsg.
func (b *alertBridge) WaitForAlert() tea.Cmd {
	return func() tea.Msg {
		a, ok := <-b.ch
		if !ok {
			return nil
		}
		return alertMsg{alert: a}
	}
}
