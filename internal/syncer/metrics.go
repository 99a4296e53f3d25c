package syncer

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments sync runs. A nil *Metrics records nothing.
type Metrics struct {
	runs           *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	workItems      *prometheus.GaugeVec
	eventsUpserted *prometheus.CounterVec
	failures       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpulse",
				Name:      "sync_runs_total",
				Help:      "Total number of sync runs by kind and result.",
			},
			[]string{"kind", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskpulse",
				Name:      "sync_duration_seconds",
				Help:      "Histogram of sync run durations in seconds.",
				Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"kind"},
		),
		workItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskpulse",
				Name:      "work_items",
				Help:      "Work items stored per project and canonical status after the last sync.",
			},
			[]string{"project", "status"},
		),
		eventsUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpulse",
				Name:      "audit_events_upserted_total",
				Help:      "Total number of audit events written per project and event type.",
			},
			[]string{"project", "type"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpulse",
				Name:      "upstream_failures_total",
				Help:      "Total number of failed upstream calls per project and error kind.",
			},
			[]string{"project", "kind"},
		),
	}
	reg.MustRegister(m.runs, m.duration, m.workItems, m.eventsUpserted, m.failures)
	return m
}

func (m *Metrics) observeRun(kind, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(kind, result).Inc()
	m.duration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) setWorkItems(project int64, counts map[string]int) {
	if m == nil {
		return
	}
	p := strconv.FormatInt(project, 10)
	for status, n := range counts {
		m.workItems.WithLabelValues(p, status).Set(float64(n))
	}
}

func (m *Metrics) addEvents(project int64, typ string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.eventsUpserted.WithLabelValues(strconv.FormatInt(project, 10), typ).Add(float64(n))
}

func (m *Metrics) upstreamFailure(project int64, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(strconv.FormatInt(project, 10), kind).Inc()
}
