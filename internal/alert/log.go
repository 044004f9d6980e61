package alert

import (
	"context"
	"log/slog"

	"github.com/nhle/shuttledesk/internal/logging"
)

// LogDispatcher writes each alert as a structured log record. Headless
// mode uses it as the primary channel.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher returns a dispatcher logging to l.
func NewLogDispatcher(l *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logging.OrDiscard(l)}
}

// Dispatch logs a.
func (d *LogDispatcher) Dispatch(ctx context.Context, a Alert) error {
	attrs := []any{
		"event", a.Event.ID,
		"kind", a.Event.Kind(),
		"appointment", a.Event.AppointmentID(),
		"recipient", a.Recipient.ID,
		"route", a.Route,
	}
	for _, l := range a.Lines {
		attrs = append(attrs, l.Label, l.Value)
	}
	d.logger.InfoContext(ctx, a.Title, attrs...)
	return nil
}
