// Package metrics defines and registers all Prometheus metrics for the
// triage agent. Consumers obtain a *Metrics instance via NewMetrics() and
// use the exported fields to record observations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "triage_agent"

// Metrics holds all Prometheus metric collectors for the triage agent.
type Metrics struct {
	// ScanCyclesTotal counts completed scan cycles, partitioned by status
	// (success/failure).
	ScanCyclesTotal *prometheus.CounterVec

	// IncidentsDetectedTotal counts detected incidents, partitioned by rule
	// and namespace.
	IncidentsDetectedTotal *prometheus.CounterVec

	// IncidentsFilteredTotal counts incidents suppressed by filters,
	// partitioned by namespace and reason.
	IncidentsFilteredTotal *prometheus.CounterVec

	// SignalCollectionErrorsTotal counts failed signal fetches, partitioned
	// by source (events/logs/metrics).
	SignalCollectionErrorsTotal *prometheus.CounterVec

	// DiagnoserRequestsTotal counts diagnosis calls, partitioned by backend
	// and status.
	DiagnoserRequestsTotal *prometheus.CounterVec

	// DiagnoserLatency observes diagnosis call latency in seconds. Local
	// models can take minutes, hence the wide buckets.
	DiagnoserLatency prometheus.Histogram

	// DiagnosesTotal counts normalized diagnoses, partitioned by source
	// branch (empty/structured/freetext).
	DiagnosesTotal *prometheus.CounterVec

	// PolicyDecisionsTotal counts policy gate evaluations, partitioned by
	// outcome (allowed/denied).
	PolicyDecisionsTotal *prometheus.CounterVec

	// ReportDeliveriesTotal counts reporter deliveries, partitioned by
	// reporter name and status.
	ReportDeliveriesTotal *prometheus.CounterVec

	// IncidentsInFlight reports incidents currently in the worker pool.
	IncidentsInFlight prometheus.Gauge
}

// RecordSignalError counts one failed signal fetch for the named source
// ("events", "logs", or "metrics"). Satisfies the collector's recorder
// interface.
func (m *Metrics) RecordSignalError(source string) {
	m.SignalCollectionErrorsTotal.WithLabelValues(source).Inc()
}

// NewMetrics creates a Metrics instance and registers all collectors with
// the provided prometheus.Registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScanCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_cycles_total",
				Help:      "Total number of completed scan cycles.",
			},
			[]string{"status"},
		),

		IncidentsDetectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incidents_detected_total",
				Help:      "Total number of detected incidents.",
			},
			[]string{"rule", "namespace"},
		),

		IncidentsFilteredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incidents_filtered_total",
				Help:      "Total number of incidents suppressed by filters.",
			},
			[]string{"namespace", "reason"},
		),

		SignalCollectionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signal_collection_errors_total",
				Help:      "Total number of failed signal fetches.",
			},
			[]string{"source"},
		),

		DiagnoserRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnoser_requests_total",
				Help:      "Total number of diagnosis backend calls.",
			},
			[]string{"backend", "status"},
		),

		DiagnoserLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "diagnoser_latency_seconds",
				Help:      "Diagnosis backend response latency in seconds.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),

		DiagnosesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnoses_total",
				Help:      "Total number of normalized diagnoses by source branch.",
			},
			[]string{"source"},
		),

		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_decisions_total",
				Help:      "Total number of policy gate evaluations.",
			},
			[]string{"outcome"},
		),

		ReportDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_deliveries_total",
				Help:      "Total number of reporter deliveries.",
			},
			[]string{"reporter", "status"},
		),

		IncidentsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "incidents_in_flight",
				Help:      "Incidents currently being processed by the worker pool.",
			},
		),
	}

	reg.MustRegister(
		m.ScanCyclesTotal,
		m.IncidentsDetectedTotal,
		m.IncidentsFilteredTotal,
		m.SignalCollectionErrorsTotal,
		m.DiagnoserRequestsTotal,
		m.DiagnoserLatency,
		m.DiagnosesTotal,
		m.PolicyDecisionsTotal,
		m.ReportDeliveriesTotal,
		m.IncidentsInFlight,
	)

	return m
}
