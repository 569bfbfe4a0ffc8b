package collector

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/rest"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// MetricsClient fetches a point-in-time usage reading for a pod container
// from the metrics.k8s.io API. Implementations return an error when the
// metrics API is unavailable; callers treat that as "metrics absent".
type MetricsClient interface {
	PodUsage(ctx context.Context, namespace, podName, container string) (*model.UsageMetrics, error)
}

// MetricsClientset implements MetricsClient against the metrics-server API.
type MetricsClientset struct {
	client metricsv.Interface
}

// NewMetricsClientset builds a MetricsClientset from the agent's REST config.
func NewMetricsClientset(config *rest.Config) (*MetricsClientset, error) {
	client, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating metrics clientset: %w", err)
	}
	return &MetricsClientset{client: client}, nil
}

// PodUsage returns the named container's current usage, falling back to the
// first reported container when no name matches.
func (m *MetricsClientset) PodUsage(ctx context.Context, namespace, podName, container string) (*model.UsageMetrics, error) {
	pm, err := m.client.MetricsV1beta1().PodMetricses(namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching pod metrics for %s/%s: %w", namespace, podName, err)
	}
	if len(pm.Containers) == 0 {
		return nil, fmt.Errorf("no container metrics reported for %s/%s", namespace, podName)
	}

	selected := pm.Containers[0]
	for _, cm := range pm.Containers {
		if cm.Name == container {
			selected = cm
			break
		}
	}

	return &model.UsageMetrics{
		CPUUsage:    selected.Usage.Cpu().String(),
		MemoryUsage: selected.Usage.Memory().String(),
	}, nil
}

var _ MetricsClient = (*MetricsClientset)(nil)
