// Package model defines the core data types that flow through the triage
// pipeline: PodSnapshot, Incident, IncidentContext, Diagnosis, and
// PolicyDecision.
package model

import (
	"crypto/rand"
	"fmt"
	"time"
)

// IncidentType classifies a detected incident.
type IncidentType string

const (
	// IncidentOOMKilled indicates a container was terminated for exceeding
	// its memory limit.
	IncidentOOMKilled IncidentType = "OOMKilled"
	// IncidentCrashLoop indicates repeated restarts throttled by the
	// orchestrator, or any restart history not attributable to an OOM kill.
	IncidentCrashLoop IncidentType = "CrashLoopBackOff"
)

// PodPhase mirrors the Kubernetes pod lifecycle phase.
type PodPhase string

const (
	PhasePending   PodPhase = "Pending"
	PhaseRunning   PodPhase = "Running"
	PhaseSucceeded PodPhase = "Succeeded"
	PhaseFailed    PodPhase = "Failed"
	PhaseUnknown   PodPhase = "Unknown"
)

// ContainerState is the minimal container status needed for detection and
// context building. TerminatedReason carries the last-terminated reason
// ("OOMKilled", "Error", ...); WaitingReason carries the current waiting
// reason ("CrashLoopBackOff", "ImagePullBackOff", ...). Either may be empty.
type ContainerState struct {
	Name             string
	RestartCount     int32
	TerminatedReason string
	WaitingReason    string
}

// PodSnapshot is a point-in-time view of a pod taken at the start of a scan
// cycle. It is owned by that cycle and never mutated after construction.
type PodSnapshot struct {
	Name          string
	Namespace     string
	Node          string
	Phase         PodPhase
	RestartPolicy string

	// Containers holds the container statuses in declaration order.
	Containers []ContainerState

	// ContainerName is the first declared container's name, used as the
	// incident's container identity.
	ContainerName string

	// MemoryRequest and MemoryLimit are the first declared container's
	// memory request/limit strings (e.g. "128Mi"). Empty when the pod spec
	// does not declare them.
	MemoryRequest string
	MemoryLimit   string

	// Labels are propagated from the pod for filter evaluation.
	Labels map[string]string
}

// Incident is one detected problematic-pod occurrence. It is the unit of work
// carried through signal collection, diagnosis, and reporting.
type Incident struct {
	// ID is a unique identifier for this incident (UUID v4).
	ID string
	// DetectedAt is when the detector flagged the pod.
	DetectedAt time.Time
	// Pod is the snapshot the incident was detected from.
	Pod PodSnapshot
	// Container is the selected failing container state. Nil for pod-level
	// (phase Failed) incidents, which have no specific container attached.
	Container *ContainerState
	// Rule names the detection rule that matched ("PodFailed",
	// "OOMKilledLastState", "CrashLoopWaiting", "RestartCount").
	Rule string
}

// NewIncident creates an Incident with a generated UUID and the current
// timestamp.
func NewIncident(pod PodSnapshot, container *ContainerState, rule string) (*Incident, error) {
	if pod.Name == "" {
		return nil, fmt.Errorf("pod name must not be empty")
	}
	if rule == "" {
		return nil, fmt.Errorf("rule must not be empty")
	}

	id, err := generateUUID()
	if err != nil {
		return nil, err
	}

	return &Incident{
		ID:         id,
		DetectedAt: time.Now().UTC(),
		Pod:        pod,
		Container:  container,
		Rule:       rule,
	}, nil
}

// ResourceSnapshot holds the memory request/limit strings for the incident
// container. Empty strings mean the pod spec did not declare the value.
type ResourceSnapshot struct {
	MemoryRequest string `json:"memory_request,omitempty"`
	MemoryLimit   string `json:"memory_limit,omitempty"`
}

// UsageMetrics is an optional point-in-time resource usage reading from the
// metrics API. Nil when the metrics API is unavailable.
type UsageMetrics struct {
	CPUUsage    string `json:"cpu_usage,omitempty"`
	MemoryUsage string `json:"memory_usage,omitempty"`
}

// ContextSignals bundles the bounded contextual signals attached to an
// incident context: at most 5 events (most recent first) and at most 10 log
// lines (in received order).
type ContextSignals struct {
	Events   []string      `json:"events"`
	LogsTail []string      `json:"logs_tail"`
	Metrics  *UsageMetrics `json:"metrics,omitempty"`
}

// IncidentContext is the structured, bounded incident record sent to the
// diagnosis service and rendered in reports. Built once per incident;
// immutable after construction.
type IncidentContext struct {
	IncidentType  IncidentType     `json:"incident_type"`
	Pod           string           `json:"pod"`
	Namespace     string           `json:"namespace"`
	Node          string           `json:"node"`
	Container     string           `json:"container"`
	RestartPolicy string           `json:"restart_policy"`
	RestartCount  int32            `json:"restart_count"`
	PodStatus     PodPhase         `json:"pod_status"`
	Resources     ResourceSnapshot `json:"resources"`

	// ObservedBehavior is a fixed natural-language description of the
	// failure pattern.
	ObservedBehavior string `json:"observed_behavior"`

	// TimeWindowSeconds is the analysis window communicated to the
	// diagnosis service.
	TimeWindowSeconds int `json:"time_window_seconds"`

	ContextualSignals ContextSignals `json:"contextual_signals"`
}

// Confidence is a diagnosis confidence value validated to lie in [0, 1].
// Out-of-range inputs are clamped at construction rather than propagated.
type Confidence float64

// NewConfidence clamps f into [0, 1] and returns it as a Confidence.
func NewConfidence(f float64) Confidence {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return Confidence(f)
}

// Float64 returns the confidence as a plain float64.
func (c Confidence) Float64() float64 { return float64(c) }

// DiagnosisSource tags which normalization branch produced a Diagnosis.
type DiagnosisSource string

const (
	// SourceEmpty means the diagnosis service returned nothing (or the call
	// failed) and the zero-confidence placeholder was produced.
	SourceEmpty DiagnosisSource = "empty"
	// SourceStructured means a JSON object was extracted from the response.
	SourceStructured DiagnosisSource = "structured"
	// SourceFreeText means the response carried no parseable object and the
	// raw text was kept as the single root cause.
	SourceFreeText DiagnosisSource = "freetext"
)

// Diagnosis is the normalized result of one diagnosis attempt. Exactly one
// Diagnosis is produced per attempt, regardless of whether the external call
// succeeded, returned malformed text, or returned nothing.
type Diagnosis struct {
	// RootCauses is the ordered root cause list. Never nil; may be empty.
	RootCauses []string
	// Confidence is clamped to [0, 1] at construction.
	Confidence Confidence
	// RecommendedMemory is the suggested memory setting, "N/A" when unknown.
	RecommendedMemory string
	// ExplanationText is free-form explanation text; may be empty.
	ExplanationText string
	// Source tags the normalization branch that produced this result.
	Source DiagnosisSource
	// RawResponse retains the original service response for audit.
	RawResponse string
}

// PolicyDecision is the pure outcome of evaluating the remediation policy
// for one incident's namespace. It is recomputed per incident, never cached.
type PolicyDecision struct {
	// Allowed is true when the namespace is in the policy allowlist.
	Allowed bool
	// AutoRemediate mirrors the cluster-wide policy flag. The agent computes
	// it but never acts on it: reporting always states that remediation is
	// disabled.
	AutoRemediate bool
}

// generateUUID produces a version 4 UUID string using crypto/rand.
func generateUUID() (string, error) {
	var uuid [16]byte
	_, err := rand.Read(uuid[:])
	if err != nil {
		return "", fmt.Errorf("generating UUID: %w", err)
	}
	// Set version 4 bits.
	uuid[6] = (uuid[6] & 0x0f) | 0x40
	// Set variant bits (RFC 4122).
	uuid[8] = (uuid[8] & 0x3f) | 0x80

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16]), nil
}
