package notify

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nhle/shuttledesk/internal/model"
)

// FallbackLabel is shown for a missing or unparseable timestamp.
const FallbackLabel = "recently"

var relMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: 1},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: 24 * time.Hour, Format: "%d hours %s", DivBy: time.Hour},
	{D: 48 * time.Hour, Format: "1 day %s", DivBy: 1},
	{D: math.MaxInt64, Format: "%d days %s", DivBy: 24 * time.Hour},
}

// RelativeTime labels ts relative to now. Future timestamps, from a
// skewed clock, read as "just now".
func RelativeTime(ts string, now time.Time) string {
	if ts == "" {
		return FallbackLabel
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return FallbackLabel
	}
	if t.After(now) {
		t = now
	}
	return humanize.CustomRelTime(t, now, "ago", "from now", relMagnitudes)
}

// EventTime labels when e was detected.
func EventTime(e model.ChangeEvent, now time.Time) string {
	return RelativeTime(e.Timestamp, now)
}
