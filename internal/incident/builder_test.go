package incident

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

func testIncident(t *testing.T, container *model.ContainerState, rule string) *model.Incident {
	t.Helper()
	inc, err := model.NewIncident(model.PodSnapshot{
		Name:          "web-0",
		Namespace:     "demo",
		Node:          "node-1",
		Phase:         model.PhaseRunning,
		RestartPolicy: "Always",
		ContainerName: "app",
		MemoryRequest: "128Mi",
		MemoryLimit:   "256Mi",
	}, container, rule)
	if err != nil {
		t.Fatalf("NewIncident: %v", err)
	}
	return inc
}

func TestBuild_OOMKilled(t *testing.T) {
	inc := testIncident(t, &model.ContainerState{
		Name:             "app",
		RestartCount:     4,
		TerminatedReason: "OOMKilled",
	}, "OOMKilledLastState")

	cx := Build(inc, model.ContextSignals{})

	if cx.IncidentType != model.IncidentOOMKilled {
		t.Errorf("IncidentType = %q, want OOMKilled", cx.IncidentType)
	}
	if cx.RestartCount != 4 {
		t.Errorf("RestartCount = %d, want 4", cx.RestartCount)
	}
	if cx.Pod != "web-0" || cx.Namespace != "demo" || cx.Node != "node-1" || cx.Container != "app" {
		t.Errorf("identity = %s/%s node %s container %s", cx.Namespace, cx.Pod, cx.Node, cx.Container)
	}
	if cx.Resources.MemoryRequest != "128Mi" || cx.Resources.MemoryLimit != "256Mi" {
		t.Errorf("Resources = %+v", cx.Resources)
	}
	if cx.ObservedBehavior != "Repeated restarts after memory exhaustion" {
		t.Errorf("ObservedBehavior = %q", cx.ObservedBehavior)
	}
	if cx.TimeWindowSeconds != 120 {
		t.Errorf("TimeWindowSeconds = %d, want 120", cx.TimeWindowSeconds)
	}
}

func TestBuild_NonOOMIsCrashLoop(t *testing.T) {
	// Any termination reason other than OOMKilled classifies as crash loop.
	inc := testIncident(t, &model.ContainerState{
		Name:             "app",
		RestartCount:     2,
		TerminatedReason: "Error",
		WaitingReason:    "CrashLoopBackOff",
	}, "CrashLoopWaiting")

	cx := Build(inc, model.ContextSignals{})
	if cx.IncidentType != model.IncidentCrashLoop {
		t.Errorf("IncidentType = %q, want CrashLoopBackOff", cx.IncidentType)
	}
}

func TestBuild_PodLevelIncident(t *testing.T) {
	// Whole-pod failures carry no container state but still report the first
	// declared container's identity with a zero restart count.
	inc := testIncident(t, nil, "PodFailed")

	cx := Build(inc, model.ContextSignals{})
	if cx.IncidentType != model.IncidentCrashLoop {
		t.Errorf("IncidentType = %q, want CrashLoopBackOff", cx.IncidentType)
	}
	if cx.Container != "app" {
		t.Errorf("Container = %q, want app", cx.Container)
	}
	if cx.RestartCount != 0 {
		t.Errorf("RestartCount = %d, want 0", cx.RestartCount)
	}
}

func TestBuild_TruncatesEvents(t *testing.T) {
	var events []string
	for i := 0; i < 8; i++ {
		events = append(events, fmt.Sprintf("event %d", i))
	}
	inc := testIncident(t, nil, "PodFailed")

	cx := Build(inc, model.ContextSignals{Events: events})

	// First five survive: the collector orders most recent first.
	want := []string{"event 0", "event 1", "event 2", "event 3", "event 4"}
	if !reflect.DeepEqual(cx.ContextualSignals.Events, want) {
		t.Errorf("Events = %v, want %v", cx.ContextualSignals.Events, want)
	}
}

func TestBuild_TruncatesLogs(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	inc := testIncident(t, nil, "PodFailed")

	cx := Build(inc, model.ContextSignals{LogsTail: lines})

	got := cx.ContextualSignals.LogsTail
	if len(got) != 10 {
		t.Fatalf("LogsTail = %d lines, want 10", len(got))
	}
	// The final ten lines, original order preserved.
	if got[0] != "line 20" || got[9] != "line 29" {
		t.Errorf("LogsTail bounds = %q .. %q, want line 20 .. line 29", got[0], got[9])
	}
}

func TestBuild_NilSignalsBecomeEmpty(t *testing.T) {
	inc := testIncident(t, nil, "PodFailed")

	cx := Build(inc, model.ContextSignals{})
	if cx.ContextualSignals.Events == nil {
		t.Error("Events should be an empty slice, not nil")
	}
	if cx.ContextualSignals.LogsTail == nil {
		t.Error("LogsTail should be an empty slice, not nil")
	}
	if cx.ContextualSignals.Metrics != nil {
		t.Errorf("Metrics = %+v, want nil", cx.ContextualSignals.Metrics)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	inc := testIncident(t, &model.ContainerState{Name: "app", RestartCount: 1}, "RestartCount")
	signals := model.ContextSignals{
		Events:   []string{"Warning BackOff: restarting"},
		LogsTail: []string{"fatal: out of memory"},
	}

	a := Build(inc, signals)
	b := Build(inc, signals)
	if !reflect.DeepEqual(a, b) {
		t.Error("Build should be deterministic for identical input")
	}
}
