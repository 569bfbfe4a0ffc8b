package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeKubeClient implements KubeClient for testing.
type fakeKubeClient struct {
	events    *corev1.EventList
	eventsErr error
	logs      string
	logsErr   error
}

func (f *fakeKubeClient) ListPods(ctx context.Context, namespace string) (*corev1.PodList, error) {
	return &corev1.PodList{}, nil
}

func (f *fakeKubeClient) ListEvents(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.EventList, error) {
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	if f.events == nil {
		return &corev1.EventList{}, nil
	}
	return f.events, nil
}

func (f *fakeKubeClient) GetPodLogs(ctx context.Context, namespace, podName, container string, tailLines *int64) (string, error) {
	if f.logsErr != nil {
		return "", f.logsErr
	}
	return f.logs, nil
}

// recordingErrorRecorder implements SignalErrorRecorder for testing.
// CollectSignals records from concurrent goroutines, hence the mutex.
type recordingErrorRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recordingErrorRecorder) RecordSignalError(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[source]++
}

func (r *recordingErrorRecorder) count(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[source]
}

func (r *recordingErrorRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, c := range r.counts {
		n += c
	}
	return n
}

// fakeMetricsClient implements MetricsClient for testing.
type fakeMetricsClient struct {
	usage *model.UsageMetrics
	err   error
}

func (f *fakeMetricsClient) PodUsage(ctx context.Context, namespace, podName, container string) (*model.UsageMetrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.usage, nil
}

func event(reason, message string, age time.Duration, count int32) corev1.Event {
	return corev1.Event{
		Type:          "Warning",
		Reason:        reason,
		Message:       message,
		Count:         count,
		LastTimestamp: metav1.Time{Time: time.Now().Add(-age)},
	}
}

func testIncident(t *testing.T) *model.Incident {
	t.Helper()
	inc, err := model.NewIncident(model.PodSnapshot{
		Name:          "web-0",
		Namespace:     "demo",
		ContainerName: "app",
	}, &model.ContainerState{Name: "app", RestartCount: 3}, "CrashLoopWaiting")
	if err != nil {
		t.Fatalf("NewIncident: %v", err)
	}
	return inc
}

func TestCollectSignals(t *testing.T) {
	kube := &fakeKubeClient{
		events: &corev1.EventList{Items: []corev1.Event{
			event("BackOff", "Back-off restarting failed container", 5*time.Minute, 12),
			event("Scheduled", "Successfully assigned demo/web-0", 10*time.Minute, 1),
			event("OOMKilled", "Container exceeded memory limit", 1*time.Minute, 1),
			event("Pulled", "Container image already present", 9*time.Minute, 1),
			event("Killing", "Stopping container app", 2*time.Minute, 1),
		}},
		logs: "line one\nline two\nline three\n",
	}
	metrics := &fakeMetricsClient{usage: &model.UsageMetrics{CPUUsage: "20m", MemoryUsage: "120Mi"}}

	c := New(kube, metrics, config.CollectorConfig{EventLimit: 5, LogTailLines: 50}, nil, testLogger())
	signals := c.CollectSignals(context.Background(), testIncident(t))

	// Irrelevant reasons dropped, remainder ordered most recent first.
	want := []string{
		"Warning OOMKilled: Container exceeded memory limit",
		"Warning Killing: Stopping container app",
		"Warning BackOff: Back-off restarting failed container (x12)",
	}
	if len(signals.Events) != len(want) {
		t.Fatalf("Events = %v, want %d entries", signals.Events, len(want))
	}
	for i, w := range want {
		if signals.Events[i] != w {
			t.Errorf("Events[%d] = %q, want %q", i, signals.Events[i], w)
		}
	}

	if len(signals.LogsTail) != 3 || signals.LogsTail[0] != "line one" || signals.LogsTail[2] != "line three" {
		t.Errorf("LogsTail = %v", signals.LogsTail)
	}

	if signals.Metrics == nil || signals.Metrics.MemoryUsage != "120Mi" {
		t.Errorf("Metrics = %+v", signals.Metrics)
	}
}

func TestCollectSignals_EventLimit(t *testing.T) {
	var items []corev1.Event
	for i := 0; i < 8; i++ {
		items = append(items, event("BackOff", fmt.Sprintf("restart %d", i), time.Duration(i)*time.Minute, 1))
	}
	kube := &fakeKubeClient{events: &corev1.EventList{Items: items}}

	c := New(kube, nil, config.CollectorConfig{EventLimit: 5, LogTailLines: 50}, nil, testLogger())
	signals := c.CollectSignals(context.Background(), testIncident(t))

	if len(signals.Events) != 5 {
		t.Fatalf("Events = %d, want 5", len(signals.Events))
	}
	// restart 0 is the most recent.
	if !strings.Contains(signals.Events[0], "restart 0") {
		t.Errorf("Events[0] = %q, want the most recent event first", signals.Events[0])
	}
}

func TestCollectSignals_SourcesFail(t *testing.T) {
	kube := &fakeKubeClient{
		eventsErr: fmt.Errorf("events unavailable"),
		logsErr:   fmt.Errorf("logs unavailable"),
	}
	metrics := &fakeMetricsClient{err: fmt.Errorf("metrics-server down")}
	rec := &recordingErrorRecorder{}

	c := New(kube, metrics, config.CollectorConfig{EventLimit: 5, LogTailLines: 50}, rec, testLogger())
	signals := c.CollectSignals(context.Background(), testIncident(t))

	if signals.Events == nil || len(signals.Events) != 0 {
		t.Errorf("Events = %v, want empty non-nil slice", signals.Events)
	}
	if signals.LogsTail == nil || len(signals.LogsTail) != 0 {
		t.Errorf("LogsTail = %v, want empty non-nil slice", signals.LogsTail)
	}
	if signals.Metrics != nil {
		t.Errorf("Metrics = %+v, want nil", signals.Metrics)
	}

	for _, source := range []string{"events", "logs", "metrics"} {
		if got := rec.count(source); got != 1 {
			t.Errorf("recorded %d errors for source %q, want 1", got, source)
		}
	}
}

func TestCollectSignals_NoErrorsRecordedOnSuccess(t *testing.T) {
	rec := &recordingErrorRecorder{}
	c := New(&fakeKubeClient{logs: "ok\n"}, &fakeMetricsClient{usage: &model.UsageMetrics{}}, config.CollectorConfig{EventLimit: 5, LogTailLines: 50}, rec, testLogger())
	c.CollectSignals(context.Background(), testIncident(t))

	if got := rec.total(); got != 0 {
		t.Errorf("recorded %d errors on all-success collection, want 0", got)
	}
}

func TestCollectSignals_EmptyLogs(t *testing.T) {
	c := New(&fakeKubeClient{logs: ""}, nil, config.CollectorConfig{EventLimit: 5, LogTailLines: 50}, nil, testLogger())
	signals := c.CollectSignals(context.Background(), testIncident(t))

	if signals.LogsTail == nil || len(signals.LogsTail) != 0 {
		t.Errorf("LogsTail = %v, want empty non-nil slice", signals.LogsTail)
	}
}
