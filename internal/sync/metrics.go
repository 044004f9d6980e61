package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nhle/shuttledesk/internal/model"
)

// Cycle outcomes recorded by PollMetrics.
const (
	resultOK        = "ok"
	resultError     = "error"
	resultAuth      = "auth_error"
	resultSkipped   = "skipped"
	resultDiscarded = "discarded"
)

// PollMetrics exposes counters/histograms for the polling loop.
type PollMetrics struct {
	cyclesTotal   *prometheus.CounterVec
	eventsTotal   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	snapshotSize  prometheus.Gauge
}

// NewPollMetrics registers the poll metrics on reg, or on the default
// registerer when reg is nil.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	m := &PollMetrics{
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shuttledesk",
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Poll cycles by outcome",
		}, []string{"result"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shuttledesk",
			Subsystem: "poll",
			Name:      "events_total",
			Help:      "Change events recorded by kind",
		}, []string{"kind"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shuttledesk",
			Subsystem: "poll",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of completed poll cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shuttledesk",
			Subsystem: "poll",
			Name:      "snapshot_size",
			Help:      "Appointments visible in the latest snapshot",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.cyclesTotal, m.eventsTotal, m.cycleDuration, m.snapshotSize)
	return m
}

func (m *PollMetrics) observeCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(result).Inc()
	if result == resultOK {
		m.cycleDuration.Observe(d.Seconds())
	}
}

func (m *PollMetrics) observeEvents(events []model.ChangeEvent) {
	if m == nil {
		return
	}
	for _, e := range events {
		m.eventsTotal.WithLabelValues(string(e.Kind())).Inc()
	}
}

func (m *PollMetrics) observeSnapshot(n int) {
	if m == nil {
		return
	}
	m.snapshotSize.Set(float64(n))
}
