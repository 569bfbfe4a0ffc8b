// Package agent orchestrates the triage loop:
//
//	Scan → Detect → Filter → Collect → Build → Diagnose → Normalize → Gate → Report
//
// Each scan cycle lists the watched namespace, classifies pod snapshots into
// incidents, and runs the per-incident pipeline on a bounded worker pool.
// Shutdown cancels the cycle context; in-flight incidents are dropped rather
// than drained, since the next scan of a still-broken pod re-detects it.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aqrpole/kube-ai-sre-agent/internal/collector"
	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/detector"
	"github.com/aqrpole/kube-ai-sre-agent/internal/diagnoser"
	"github.com/aqrpole/kube-ai-sre-agent/internal/filter"
	"github.com/aqrpole/kube-ai-sre-agent/internal/health"
	"github.com/aqrpole/kube-ai-sre-agent/internal/incident"
	"github.com/aqrpole/kube-ai-sre-agent/internal/metrics"
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
	"github.com/aqrpole/kube-ai-sre-agent/internal/policy"
	"github.com/aqrpole/kube-ai-sre-agent/internal/report"
)

// Agent owns the scan loop and the per-incident pipeline.
type Agent struct {
	cfg       config.Config
	kube      collector.KubeClient
	detector  *detector.Detector
	collector *collector.Collector
	filter    *filter.Engine
	gate      *policy.Gate
	diagnoser diagnoser.Diagnoser
	reporters []report.Reporter
	metrics   *metrics.Metrics
	health    *health.Handler
	logger    *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithHealth sets the health handler receiving heartbeat and readiness
// updates. Optional; nil disables health reporting.
func WithHealth(h *health.Handler) Option {
	return func(a *Agent) { a.health = h }
}

// New creates an Agent. All pipeline dependencies are required.
func New(
	cfg config.Config,
	kube collector.KubeClient,
	det *detector.Detector,
	col *collector.Collector,
	flt *filter.Engine,
	gate *policy.Gate,
	diag diagnoser.Diagnoser,
	reporters []report.Reporter,
	m *metrics.Metrics,
	opts ...Option,
) (*Agent, error) {
	if kube == nil {
		return nil, fmt.Errorf("agent: kube client must not be nil")
	}
	if det == nil {
		return nil, fmt.Errorf("agent: detector must not be nil")
	}
	if col == nil {
		return nil, fmt.Errorf("agent: collector must not be nil")
	}
	if flt == nil {
		return nil, fmt.Errorf("agent: filter engine must not be nil")
	}
	if gate == nil {
		return nil, fmt.Errorf("agent: policy gate must not be nil")
	}
	if diag == nil {
		return nil, fmt.Errorf("agent: diagnoser must not be nil")
	}
	if len(reporters) == 0 {
		return nil, fmt.Errorf("agent: at least one reporter is required")
	}
	if m == nil {
		return nil, fmt.Errorf("agent: metrics must not be nil")
	}

	a := &Agent{
		cfg:       cfg,
		kube:      kube,
		detector:  det,
		collector: col,
		filter:    flt,
		gate:      gate,
		diagnoser: diag,
		reporters: reporters,
		metrics:   m,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Run executes the scan loop until ctx is cancelled. The first cycle runs
// immediately; subsequent cycles follow the configured interval.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting",
		"namespace", a.cfg.Namespace,
		"scan_interval", a.cfg.ScanInterval,
		"workers", a.cfg.Workers,
		"diagnoser", a.diagnoser.Name(),
	)

	ticker := time.NewTicker(a.cfg.ScanInterval)
	defer ticker.Stop()

	a.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping, dropping in-flight incidents")
			return ctx.Err()
		case <-ticker.C:
			a.runCycle(ctx)
		}
	}
}

// runCycle performs one scan of the watched namespace.
func (a *Agent) runCycle(ctx context.Context) {
	if a.health != nil {
		a.health.UpdateHeartbeat()
		a.health.SetDiagnoserHealthy(a.diagnoser.Healthy(ctx))
	}

	pods, err := a.kube.ListPods(ctx, a.cfg.Namespace)
	if err != nil {
		a.metrics.ScanCyclesTotal.WithLabelValues("failure").Inc()
		if a.health != nil {
			a.health.SetAPIServerReachable(false)
		}
		a.logger.Error("pod listing failed, skipping cycle",
			"namespace", a.cfg.Namespace,
			"error", err,
		)
		return
	}
	if a.health != nil {
		a.health.SetAPIServerReachable(true)
	}

	snapshots := detector.SnapshotAll(pods.Items)
	incidents := a.detector.Detect(snapshots)

	a.logger.Debug("scan cycle",
		"namespace", a.cfg.Namespace,
		"pods", len(snapshots),
		"incidents", len(incidents),
	)

	var accepted []*model.Incident
	for _, inc := range incidents {
		a.metrics.IncidentsDetectedTotal.WithLabelValues(inc.Rule, inc.Pod.Namespace).Inc()

		if result := a.filter.Evaluate(inc); result.Suppressed {
			a.metrics.IncidentsFilteredTotal.WithLabelValues(inc.Pod.Namespace, string(result.Reason)).Inc()
			a.logger.Info("incident suppressed",
				"pod", inc.Pod.Name,
				"namespace", inc.Pod.Namespace,
				"reason", result.Reason,
				"incident_id", inc.ID,
			)
			continue
		}
		accepted = append(accepted, inc)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for _, inc := range accepted {
		inc := inc
		g.Go(func() error {
			a.processIncident(gCtx, inc)
			return nil
		})
	}
	// Workers never return errors; failures degrade per incident.
	_ = g.Wait()

	a.metrics.ScanCyclesTotal.WithLabelValues("success").Inc()
}

// processIncident runs one incident through collect, diagnose, gate, and
// report. A failed diagnosis call degrades to the empty-response diagnosis
// instead of aborting the incident. Shutdown is different: a cancelled scan
// context drops the incident entirely, so no partial report is emitted.
func (a *Agent) processIncident(ctx context.Context, inc *model.Incident) {
	a.metrics.IncidentsInFlight.Inc()
	defer a.metrics.IncidentsInFlight.Dec()

	logger := a.logger.With(
		"pod", inc.Pod.Name,
		"namespace", inc.Pod.Namespace,
		"incident_id", inc.ID,
	)

	signals := a.collector.CollectSignals(ctx, inc)
	cx := incident.Build(inc, signals)

	raw := a.diagnose(ctx, logger, cx)
	if ctx.Err() != nil {
		// The scan context is cancelled on shutdown only. A still-broken pod
		// is re-detected on the next scan, so dropping here loses nothing.
		logger.Info("shutdown during processing, dropping incident")
		return
	}
	diag := diagnoser.Normalize(raw)
	a.metrics.DiagnosesTotal.WithLabelValues(string(diag.Source)).Inc()

	decision := a.gate.Decide(inc.Pod.Namespace)
	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	a.metrics.PolicyDecisionsTotal.WithLabelValues(outcome).Inc()

	rep := report.NewReport(inc, cx, diag, decision, a.diagnoser.Name())
	for _, r := range a.reporters {
		if err := r.Deliver(ctx, rep); err != nil {
			a.metrics.ReportDeliveriesTotal.WithLabelValues(r.Name(), "failure").Inc()
			logger.Error("report delivery failed",
				"reporter", r.Name(),
				"error", err,
			)
			continue
		}
		a.metrics.ReportDeliveriesTotal.WithLabelValues(r.Name(), "success").Inc()
	}
}

// diagnose calls the backend under the configured timeout. A request failure
// or per-call timeout returns the empty string, which normalizes to the
// placeholder diagnosis; the caller distinguishes shutdown cancellation and
// drops the incident instead.
func (a *Agent) diagnose(ctx context.Context, logger *slog.Logger, cx model.IncidentContext) string {
	dctx, cancel := context.WithTimeout(ctx, a.cfg.Diagnoser.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.diagnoser.Diagnose(dctx, cx)
	duration := time.Since(start)

	a.metrics.DiagnoserLatency.Observe(duration.Seconds())
	if err != nil {
		a.metrics.DiagnoserRequestsTotal.WithLabelValues(a.diagnoser.Name(), "error").Inc()
		logger.Error("diagnosis call failed",
			"backend", a.diagnoser.Name(),
			"duration", duration,
			"error", err,
		)
		return ""
	}

	a.metrics.DiagnoserRequestsTotal.WithLabelValues(a.diagnoser.Name(), "success").Inc()
	logger.Info("diagnosis complete",
		"backend", a.diagnoser.Name(),
		"duration", duration,
	)
	return raw
}
