// Package detector implements the pod health classifier. It converts fetched
// pod objects into immutable snapshots and flags pods matching a failure
// pattern: terminal pod failure, historical OOM kill, active crash-restart
// loop, or any restart history.
package detector

import (
	"log/slog"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// Detection rule names, in priority order. The first rule to match a pod
// selects it and ends evaluation for that pod.
const (
	RulePodFailed     = "PodFailed"
	RuleOOMKilled     = "OOMKilledLastState"
	RuleCrashLoop     = "CrashLoopWaiting"
	RuleRestartCount  = "RestartCount"
	reasonOOMKilled   = "OOMKilled"
	reasonCrashLoop   = "CrashLoopBackOff"
)

// Detector classifies pod snapshots into incidents. Detection is
// deterministic for a fixed snapshot input: pods are evaluated in the order
// given, containers in declaration order, rules in priority order.
type Detector struct {
	logger *slog.Logger
}

// New creates a Detector.
func New(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Detect classifies the given snapshots and returns one incident per
// problematic pod. Each pod appears at most once in the output, paired with
// at most one container state (or none, for pod-level failures).
func (d *Detector) Detect(snapshots []model.PodSnapshot) []*model.Incident {
	var incidents []*model.Incident

	for _, snap := range snapshots {
		inc := d.classify(snap)
		if inc == nil {
			continue
		}
		d.logger.Info("problematic pod detected",
			"pod", snap.Name,
			"namespace", snap.Namespace,
			"rule", inc.Rule,
			"incident_id", inc.ID,
		)
		incidents = append(incidents, inc)
	}

	return incidents
}

// classify applies the detection rules to a single pod. Rule priority:
//
//  1. phase Failed flags the whole pod; container rules are skipped.
//  2. Per container, in declaration order, the first container matching any
//     of: OOMKilled last-terminated state, CrashLoopBackOff waiting state,
//     or restart count above zero, is selected and scanning stops.
//
// The restart-count rule is deliberately broad: it flags any restart
// history, memory-related or not, to cover OOM kills masked by an Always
// restart policy.
func (d *Detector) classify(snap model.PodSnapshot) *model.Incident {
	if snap.Phase == model.PhaseFailed {
		return d.newIncident(snap, nil, RulePodFailed)
	}

	for i := range snap.Containers {
		cs := snap.Containers[i]

		if cs.TerminatedReason == reasonOOMKilled {
			return d.newIncident(snap, &cs, RuleOOMKilled)
		}
		if cs.WaitingReason == reasonCrashLoop {
			return d.newIncident(snap, &cs, RuleCrashLoop)
		}
		if cs.RestartCount > 0 {
			return d.newIncident(snap, &cs, RuleRestartCount)
		}
	}

	return nil
}

func (d *Detector) newIncident(snap model.PodSnapshot, cs *model.ContainerState, rule string) *model.Incident {
	inc, err := model.NewIncident(snap, cs, rule)
	if err != nil {
		// Only reachable for snapshots with an empty pod name, which the
		// API server does not produce. Log and drop rather than panic.
		d.logger.Error("dropping malformed snapshot",
			"namespace", snap.Namespace,
			"rule", rule,
			"error", err,
		)
		return nil
	}
	return inc
}
