// KubeClient narrows the Kubernetes API surface to the operations the agent
// needs, so tests can substitute fakes.
package collector

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// KubeClient abstracts the Kubernetes API operations the agent needs: listing
// pods for the scan cycle and fetching events and logs for a flagged pod.
type KubeClient interface {
	// ListPods lists all pods in a namespace.
	ListPods(ctx context.Context, namespace string) (*corev1.PodList, error)

	// ListEvents lists events matching the given field selector in a
	// namespace.
	ListEvents(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.EventList, error)

	// GetPodLogs returns the tail of a pod container's log output.
	GetPodLogs(ctx context.Context, namespace, podName, container string, tailLines *int64) (string, error)
}

// Clientset implements KubeClient against a real API server.
type Clientset struct {
	client kubernetes.Interface
}

// NewClientset wraps a Kubernetes clientset.
func NewClientset(client kubernetes.Interface) *Clientset {
	return &Clientset{client: client}
}

func (c *Clientset) ListPods(ctx context.Context, namespace string) (*corev1.PodList, error) {
	pods, err := c.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", namespace, err)
	}
	return pods, nil
}

func (c *Clientset) ListEvents(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.EventList, error) {
	events, err := c.client.CoreV1().Events(namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing events in %s: %w", namespace, err)
	}
	return events, nil
}

func (c *Clientset) GetPodLogs(ctx context.Context, namespace, podName, container string, tailLines *int64) (string, error) {
	req := c.client.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{
		Container: container,
		TailLines: tailLines,
	})
	raw, err := req.Do(ctx).Raw()
	if err != nil {
		return "", fmt.Errorf("fetching logs for %s/%s container %s: %w", namespace, podName, container, err)
	}
	return string(raw), nil
}

var _ KubeClient = (*Clientset)(nil)
