package detector

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// Snapshot converts a fetched pod into an immutable PodSnapshot owned by the
// current scan cycle. Resource fields are read defensively: absent request
// or limit sections become empty strings rather than failing conversion.
func Snapshot(pod *corev1.Pod) model.PodSnapshot {
	snap := model.PodSnapshot{
		Name:          pod.Name,
		Namespace:     pod.Namespace,
		Node:          pod.Spec.NodeName,
		Phase:         model.PodPhase(pod.Status.Phase),
		RestartPolicy: string(pod.Spec.RestartPolicy),
		Labels:        pod.Labels,
	}

	for _, cs := range pod.Status.ContainerStatuses {
		state := model.ContainerState{
			Name:         cs.Name,
			RestartCount: cs.RestartCount,
		}
		if cs.LastTerminationState.Terminated != nil {
			state.TerminatedReason = cs.LastTerminationState.Terminated.Reason
		}
		if cs.State.Waiting != nil {
			state.WaitingReason = cs.State.Waiting.Reason
		}
		snap.Containers = append(snap.Containers, state)
	}

	// Incident identity and resource snapshot follow the first declared
	// container, matching the reported container even for whole-pod
	// failures where no status is selected.
	if len(pod.Spec.Containers) > 0 {
		first := pod.Spec.Containers[0]
		snap.ContainerName = first.Name
		if req, ok := first.Resources.Requests[corev1.ResourceMemory]; ok {
			snap.MemoryRequest = req.String()
		}
		if lim, ok := first.Resources.Limits[corev1.ResourceMemory]; ok {
			snap.MemoryLimit = lim.String()
		}
	}

	return snap
}

// SnapshotAll converts a pod list into snapshots, preserving list order so
// detection stays deterministic for a fixed listing.
func SnapshotAll(pods []corev1.Pod) []model.PodSnapshot {
	snaps := make([]model.PodSnapshot, 0, len(pods))
	for i := range pods {
		snaps = append(snaps, Snapshot(&pods[i]))
	}
	return snaps
}
