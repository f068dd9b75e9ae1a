package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the persistence tooling.
// Metrics are organized by subsystem: migrations, diagnostic checks, and
// webhook probes. All counters and histograms are registered via promauto
// for automatic registration with the default Prometheus registry.
type Metrics struct {
	// MigrationsApplied counts migration steps applied, labeled by direction (up, down).
	MigrationsApplied *prometheus.CounterVec

	// MigrationDuration observes the duration of a migration command in seconds.
	MigrationDuration prometheus.Histogram

	// ChecksRun counts diagnostic checks executed, labeled by check name.
	ChecksRun *prometheus.CounterVec

	// ChecksFailed counts diagnostic checks that could not complete, labeled by check name.
	ChecksFailed *prometheus.CounterVec

	// FindingsTotal counts findings produced, labeled by check name and severity.
	FindingsTotal *prometheus.CounterVec

	// RepairsApplied counts corrective writes performed by the drift check.
	RepairsApplied prometheus.Counter

	// CheckDuration observes per-check duration in seconds, labeled by check name.
	CheckDuration *prometheus.HistogramVec

	// WebhookProbes counts webhook wiring probes, labeled by endpoint and outcome.
	WebhookProbes *prometheus.CounterVec

	// WebhookRequestDuration observes webhook request duration in seconds, labeled by endpoint.
	WebhookRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MigrationsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_applied_total",
			Help:      "Total number of migration steps applied by direction",
		}, []string{"direction"}),
		MigrationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_duration_seconds",
			Help:      "Duration of migration commands in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		ChecksRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_run_total",
			Help:      "Total number of diagnostic checks executed by check",
		}, []string{"check"}),
		ChecksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_failed_total",
			Help:      "Total number of diagnostic checks that errored by check",
		}, []string{"check"}),
		FindingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Total number of findings by check and severity",
		}, []string{"check", "severity"}),
		RepairsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repairs_applied_total",
			Help:      "Total number of corrective writes applied by the drift check",
		}),
		CheckDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Duration of diagnostic checks in seconds by check",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"check"}),
		WebhookProbes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_probes_total",
			Help:      "Total number of webhook wiring probes by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		WebhookRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_request_duration_seconds",
			Help:      "Duration of webhook requests in seconds by endpoint",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
	}
}

// RecordCheck records a completed check run with its duration.
func (m *Metrics) RecordCheck(check string, seconds float64) {
	m.ChecksRun.WithLabelValues(check).Inc()
	m.CheckDuration.WithLabelValues(check).Observe(seconds)
}

// RecordCheckFailed records a check that could not complete.
func (m *Metrics) RecordCheckFailed(check string) {
	m.ChecksFailed.WithLabelValues(check).Inc()
}

// RecordFinding records a single finding.
func (m *Metrics) RecordFinding(check, severity string) {
	m.FindingsTotal.WithLabelValues(check, severity).Inc()
}

// RecordRepair records a corrective write.
func (m *Metrics) RecordRepair() {
	m.RepairsApplied.Inc()
}

// RecordWebhookProbe records a webhook wiring probe outcome with its duration.
func (m *Metrics) RecordWebhookProbe(endpoint, outcome string, seconds float64) {
	m.WebhookProbes.WithLabelValues(endpoint, outcome).Inc()
	m.WebhookRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordMigration records applied migration steps for a direction.
func (m *Metrics) RecordMigration(direction string, seconds float64) {
	m.MigrationsApplied.WithLabelValues(direction).Inc()
	m.MigrationDuration.Observe(seconds)
}
