// Package incident builds the bounded IncidentContext record handed to the
// diagnosis backend. Building is pure: the same incident and signals always
// produce the same context, and nothing here touches the network.
package incident

import (
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

const (
	// maxEvents bounds the events attached to a context, keeping the most
	// recent ones from the collector's ordering.
	maxEvents = 5

	// maxLogLines bounds the log tail attached to a context, keeping the
	// final lines in their original order.
	maxLogLines = 10

	// observedBehavior is the fixed failure description sent with every
	// context. The detector only flags restart-pattern failures, so the
	// description does not vary per incident.
	observedBehavior = "Repeated restarts after memory exhaustion"

	// timeWindowSeconds is the analysis window communicated to the diagnosis
	// backend.
	timeWindowSeconds = 120
)

// Build assembles the IncidentContext for a detected incident. The incident
// is classified OOMKilled only when the selected container's last termination
// reason says so; every other failure shape, including whole-pod failures,
// reports as CrashLoopBackOff.
func Build(inc *model.Incident, signals model.ContextSignals) model.IncidentContext {
	incidentType := model.IncidentCrashLoop
	var restartCount int32
	if inc.Container != nil {
		restartCount = inc.Container.RestartCount
		if inc.Container.TerminatedReason == "OOMKilled" {
			incidentType = model.IncidentOOMKilled
		}
	}

	return model.IncidentContext{
		IncidentType:  incidentType,
		Pod:           inc.Pod.Name,
		Namespace:     inc.Pod.Namespace,
		Node:          inc.Pod.Node,
		Container:     inc.Pod.ContainerName,
		RestartPolicy: inc.Pod.RestartPolicy,
		RestartCount:  restartCount,
		PodStatus:     inc.Pod.Phase,
		Resources: model.ResourceSnapshot{
			MemoryRequest: inc.Pod.MemoryRequest,
			MemoryLimit:   inc.Pod.MemoryLimit,
		},
		ObservedBehavior:  observedBehavior,
		TimeWindowSeconds: timeWindowSeconds,
		ContextualSignals: model.ContextSignals{
			Events:   truncateEvents(signals.Events),
			LogsTail: truncateLogs(signals.LogsTail),
			Metrics:  signals.Metrics,
		},
	}
}

// truncateEvents keeps the first maxEvents entries. The collector delivers
// events most recent first, so the head of the slice is the newest.
func truncateEvents(events []string) []string {
	if events == nil {
		return []string{}
	}
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	out := make([]string, len(events))
	copy(out, events)
	return out
}

// truncateLogs keeps the final maxLogLines lines in their original order.
func truncateLogs(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}
