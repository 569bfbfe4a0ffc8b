// Package collector fetches the contextual signals attached to a detected
// incident: recent pod events, a log tail, and an optional usage reading.
// Every signal source is best-effort. A failed fetch degrades to an absent
// signal and a log line; it never fails the incident.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// relevantEventReasons are the event reasons kept for diagnosis context.
// Everything else (scheduling, image pulls, probes) is noise for a
// memory-failure triage.
var relevantEventReasons = map[string]bool{
	"OOMKilled": true,
	"BackOff":   true,
	"Killing":   true,
}

// SignalErrorRecorder counts failed signal fetches by source. Implemented by
// the agent's metrics; a nil recorder disables counting.
type SignalErrorRecorder interface {
	RecordSignalError(source string)
}

type nopSignalErrorRecorder struct{}

func (nopSignalErrorRecorder) RecordSignalError(string) {}

// Collector gathers contextual signals for incidents. Safe for concurrent
// use; each call owns its own result slices.
type Collector struct {
	kube         KubeClient
	metrics      MetricsClient
	errs         SignalErrorRecorder
	eventLimit   int
	logTailLines int64
	logger       *slog.Logger
}

// New creates a Collector. The metrics client may be nil, in which case the
// usage reading is always absent. The error recorder may be nil.
func New(kube KubeClient, metrics MetricsClient, cfg config.CollectorConfig, errs SignalErrorRecorder, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if errs == nil {
		errs = nopSignalErrorRecorder{}
	}
	eventLimit := cfg.EventLimit
	if eventLimit <= 0 {
		eventLimit = 5
	}
	tail := cfg.LogTailLines
	if tail <= 0 {
		tail = 50
	}
	return &Collector{
		kube:         kube,
		metrics:      metrics,
		errs:         errs,
		eventLimit:   eventLimit,
		logTailLines: tail,
		logger:       logger,
	}
}

// CollectSignals fetches events, logs, and usage metrics for the incident
// concurrently. Partial failure is normal: each source that errors is logged
// and left empty, and the returned signals always carry non-nil slices.
func (c *Collector) CollectSignals(ctx context.Context, inc *model.Incident) model.ContextSignals {
	signals := model.ContextSignals{
		Events:   []string{},
		LogsTail: []string{},
	}

	container := inc.Pod.ContainerName
	if inc.Container != nil {
		container = inc.Container.Name
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		events, err := c.collectEvents(gCtx, inc.Pod.Namespace, inc.Pod.Name)
		if err != nil {
			c.errs.RecordSignalError("events")
			c.logger.Warn("event collection failed",
				"pod", inc.Pod.Name,
				"namespace", inc.Pod.Namespace,
				"incident_id", inc.ID,
				"error", err,
			)
			return nil
		}
		signals.Events = events
		return nil
	})

	g.Go(func() error {
		lines, err := c.collectLogs(gCtx, inc.Pod.Namespace, inc.Pod.Name, container)
		if err != nil {
			c.errs.RecordSignalError("logs")
			c.logger.Warn("log collection failed",
				"pod", inc.Pod.Name,
				"namespace", inc.Pod.Namespace,
				"container", container,
				"incident_id", inc.ID,
				"error", err,
			)
			return nil
		}
		signals.LogsTail = lines
		return nil
	})

	if c.metrics != nil {
		g.Go(func() error {
			usage, err := c.metrics.PodUsage(gCtx, inc.Pod.Namespace, inc.Pod.Name, container)
			if err != nil {
				c.errs.RecordSignalError("metrics")
				c.logger.Debug("usage metrics unavailable",
					"pod", inc.Pod.Name,
					"namespace", inc.Pod.Namespace,
					"incident_id", inc.ID,
					"error", err,
				)
				return nil
			}
			signals.Metrics = usage
			return nil
		})
	}

	// Goroutines never return errors; each source degrades independently.
	_ = g.Wait()
	return signals
}

// collectEvents fetches events for the pod, keeps the memory-failure relevant
// reasons, and returns formatted lines most recent first, capped at the
// configured limit.
func (c *Collector) collectEvents(ctx context.Context, namespace, podName string) ([]string, error) {
	opts := metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.name=%s,involvedObject.kind=Pod", podName),
	}
	list, err := c.kube.ListEvents(ctx, namespace, opts)
	if err != nil {
		return nil, err
	}

	type timedEvent struct {
		at   time.Time
		line string
	}

	var kept []timedEvent
	for _, e := range list.Items {
		if !relevantEventReasons[e.Reason] {
			continue
		}
		at := e.LastTimestamp.Time
		if at.IsZero() {
			at = e.EventTime.Time
		}
		line := fmt.Sprintf("%s %s: %s", e.Type, e.Reason, strings.TrimSpace(e.Message))
		if e.Count > 1 {
			line += fmt.Sprintf(" (x%d)", e.Count)
		}
		kept = append(kept, timedEvent{at: at, line: line})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].at.After(kept[j].at)
	})
	if len(kept) > c.eventLimit {
		kept = kept[:c.eventLimit]
	}

	lines := make([]string, 0, len(kept))
	for _, e := range kept {
		lines = append(lines, e.line)
	}
	return lines, nil
}

// collectLogs fetches the configured tail of the container's logs and splits
// it into lines, preserving their order.
func (c *Collector) collectLogs(ctx context.Context, namespace, podName, container string) ([]string, error) {
	raw, err := c.kube.GetPodLogs(ctx, namespace, podName, container, &c.logTailLines)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimRight(raw, "\n")
	if raw == "" {
		return []string{}, nil
	}
	return strings.Split(raw, "\n"), nil
}
