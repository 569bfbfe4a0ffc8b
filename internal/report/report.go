// Package report defines the Reporter interface and the built-in reporters
// that deliver finished incident reports: structured logs (always on), a
// generic webhook, and S3 archival.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

var (
	errNilLogger = errors.New("logger must not be nil")
	errNilReport = errors.New("report must not be nil")
)

// RemediationStatus is the fixed remediation line carried by every report.
// The policy decision is recorded alongside it, but the agent never acts on
// it: reporting states DISABLED unconditionally.
const RemediationStatus = "DISABLED"

// Report is the finished triage record for one incident. It bundles the
// bounded incident context, the normalized diagnosis, and the policy
// decision into a single JSON-serializable document.
type Report struct {
	IncidentID  string    `json:"incident_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Pod          string             `json:"pod"`
	Namespace    string             `json:"namespace"`
	Node         string             `json:"node"`
	IncidentType model.IncidentType `json:"incident_type"`
	Rule         string             `json:"rule"`

	Context model.IncidentContext `json:"context"`

	RootCauses        []string `json:"root_causes"`
	Confidence        float64  `json:"confidence"`
	RecommendedMemory string   `json:"recommended_memory"`
	ExplanationText   string   `json:"explanation_text"`
	DiagnosisSource   string   `json:"diagnosis_source"`
	DiagnoserBackend  string   `json:"diagnoser_backend"`

	PolicyAllowed bool `json:"policy_allowed"`
	AutoRemediate bool `json:"auto_remediate"`

	// Remediation is always RemediationStatus regardless of the decision.
	Remediation string `json:"remediation"`
}

// NewReport assembles a Report from the pipeline's outputs.
func NewReport(inc *model.Incident, cx model.IncidentContext, diag model.Diagnosis, decision model.PolicyDecision, backend string) *Report {
	return &Report{
		IncidentID:        inc.ID,
		GeneratedAt:       time.Now().UTC(),
		Pod:               inc.Pod.Name,
		Namespace:         inc.Pod.Namespace,
		Node:              inc.Pod.Node,
		IncidentType:      cx.IncidentType,
		Rule:              inc.Rule,
		Context:           cx,
		RootCauses:        diag.RootCauses,
		Confidence:        diag.Confidence.Float64(),
		RecommendedMemory: diag.RecommendedMemory,
		ExplanationText:   diag.ExplanationText,
		DiagnosisSource:   string(diag.Source),
		DiagnoserBackend:  backend,
		PolicyAllowed:     decision.Allowed,
		AutoRemediate:     decision.AutoRemediate,
		Remediation:       RemediationStatus,
	}
}

// Reporter delivers reports to an external target. Reporters must be safe
// for concurrent use.
type Reporter interface {
	// Name returns the unique reporter identifier (e.g., "log", "webhook").
	Name() string

	// Deliver sends the report to the reporter's target. It returns an error
	// only after all retries are exhausted.
	Deliver(ctx context.Context, r *Report) error
}

// retryConfig holds parameters for retry with exponential backoff.
type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
	multiplier  float64
}

// defaultRetryConfig returns 3 attempts with backoff 1s, 5s, 25s.
func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts: 3,
		baseDelay:   1 * time.Second,
		multiplier:  5.0,
	}
}

// deliverWithRetry executes fn up to cfg.maxAttempts times with exponential
// backoff. The context can cancel retries early.
func deliverWithRetry(ctx context.Context, logger *slog.Logger, name string, cfg retryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reporter %s: context cancelled before attempt %d: %w", name, attempt+1, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		logger.Warn("report delivery attempt failed",
			"reporter", name,
			"attempt", attempt+1,
			"max_attempts", cfg.maxAttempts,
			"error", lastErr,
		)

		if attempt < cfg.maxAttempts-1 {
			delay := time.Duration(float64(cfg.baseDelay) * math.Pow(cfg.multiplier, float64(attempt)))
			select {
			case <-ctx.Done():
				return fmt.Errorf("reporter %s: context cancelled during backoff: %w", name, ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("reporter %s: delivery failed after %d attempts: %w", name, cfg.maxAttempts, lastErr)
}
