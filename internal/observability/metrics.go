package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconcile and audit schedulers.
type Metrics struct {
	CyclesRun     *prometheus.CounterVec // labels: outcome={ok,fetch_error,reconcile_error,delivery_error}
	CycleDuration prometheus.Histogram
	FetchDuration prometheus.Histogram

	NotificationsSent *prometheus.CounterVec // labels: kind={normal,no_runs}
	AlertsRaised      prometheus.Counter
	SchedulerRunning  prometheus.Gauge
}

// NewMetrics creates and registers all scheduler metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesRun,
		m.CycleDuration,
		m.FetchDuration,
		m.NotificationsSent,
		m.AlertsRaised,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluemoon",
			Name:      "cycles_total",
			Help:      "Per-resort reconcile cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bluemoon",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one resort's fetch-reconcile-notify cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bluemoon",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream grooming feed request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluemoon",
			Name:      "notifications_sent_total",
			Help:      "Notifications recorded after verified delivery, by kind.",
		}, []string{"kind"}),
		AlertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bluemoon",
			Name:      "alerts_raised_total",
			Help:      "Operational alerts raised by the audit sweep.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bluemoon",
			Name:      "scheduler_running",
			Help:      "1 while the scheduler tickers are active.",
		}),
	}
}
