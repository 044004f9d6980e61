package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/notify"
)

func TestRelativeTime(t *testing.T) {
	cases := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"zero", 0, "just now"},
		{"seconds", 59 * time.Second, "just now"},
		{"one minute", 90 * time.Second, "1 minute ago"},
		{"minutes", 5 * time.Minute, "5 minutes ago"},
		{"under an hour", 59*time.Minute + 59*time.Second, "59 minutes ago"},
		{"one hour", time.Hour, "1 hour ago"},
		{"hours", 23 * time.Hour, "23 hours ago"},
		{"one day", 24 * time.Hour, "1 day ago"},
		{"days", 72 * time.Hour, "3 days ago"},
		{"future", -10 * time.Minute, "just now"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := now.Add(-tc.ago).Format(time.RFC3339Nano)
			assert.Equal(t, tc.want, notify.RelativeTime(ts, now))
		})
	}
}

func TestRelativeTimeFallback(t *testing.T) {
	for _, ts := range []string{"", "yesterday", "1741593600", "2026-13-45T00:00:00Z"} {
		assert.Equal(t, notify.FallbackLabel, notify.RelativeTime(ts, now), ts)
	}
}

func TestEventTime(t *testing.T) {
	e := model.NewEvent(model.NewAppointment{}, now.Add(-2*time.Hour))
	assert.Equal(t, "2 hours ago", notify.EventTime(e, now))

	e.Timestamp = "garbage"
	assert.Equal(t, "recently", notify.EventTime(e, now))
}
