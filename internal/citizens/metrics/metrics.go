package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the citizens module.
type Metrics struct {
	ImportsCreated     prometheus.Counter
	CitizensImported   prometheus.Counter
	ImportsRejected    *prometheus.CounterVec
	ValidationDuration prometheus.Histogram

	Patches      *prometheus.CounterVec
	EdgesChanged prometheus.Counter

	ReportDuration *prometheus.HistogramVec
}

// New registers the metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImportsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "census_imports_created_total",
			Help: "Total number of imports stored",
		}),
		CitizensImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "census_citizens_imported_total",
			Help: "Total number of citizens stored across all imports",
		}),
		ImportsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "census_imports_rejected_total",
			Help: "Imports rejected during validation by error code",
		}, []string{"code"}),
		ValidationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "census_import_validation_duration_seconds",
			Help:    "Duration of batch validation of one import",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Patches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "census_citizen_patches_total",
			Help: "Citizen patches by outcome",
		}, []string{"outcome"}), // outcome: "applied", "rejected", "failed"
		EdgesChanged: factory.NewCounter(prometheus.CounterOpts{
			Name: "census_relative_edges_changed_total",
			Help: "Reciprocal relative records rewritten by patches",
		}),

		ReportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "census_report_duration_seconds",
			Help:    "Duration of analytics reports by kind",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"report"}), // report: "birthdays", "percentiles"
	}
}

func (m *Metrics) RecordImport(citizens int) {
	if m != nil {
		m.ImportsCreated.Inc()
		m.CitizensImported.Add(float64(citizens))
	}
}

func (m *Metrics) RecordRejectedImport(code string) {
	if m != nil {
		m.ImportsRejected.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) ObserveValidation(d time.Duration) {
	if m != nil {
		m.ValidationDuration.Observe(d.Seconds())
	}
}

// RecordPatch counts a patch outcome and the edges it rewrote.
func (m *Metrics) RecordPatch(outcome string, edges int) {
	if m != nil {
		m.Patches.WithLabelValues(outcome).Inc()
		if edges > 0 {
			m.EdgesChanged.Add(float64(edges))
		}
	}
}

func (m *Metrics) ObserveReport(report string, d time.Duration) {
	if m != nil {
		m.ReportDuration.WithLabelValues(report).Observe(d.Seconds())
	}
}
