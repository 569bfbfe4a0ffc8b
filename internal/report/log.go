package report

import (
	"context"
	"log/slog"
	"strings"
)

const logReporterName = "log"

// LogReporter writes reports as structured log lines. It is always enabled
// and non-optional, so every incident leaves a trace even when all external
// reporters are down.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter. The logger must not be nil.
func NewLogReporter(logger *slog.Logger) (*LogReporter, error) {
	if logger == nil {
		return nil, errNilLogger
	}
	return &LogReporter{logger: logger}, nil
}

func (l *LogReporter) Name() string { return logReporterName }

// Deliver writes the report as one structured log entry. The log reporter
// never retries: stdout is not expected to fail transiently.
func (l *LogReporter) Deliver(_ context.Context, r *Report) error {
	if r == nil {
		return errNilReport
	}

	l.logger.Info("incident_report",
		"incident_id", r.IncidentID,
		"pod", r.Pod,
		"namespace", r.Namespace,
		"node", r.Node,
		"incident_type", string(r.IncidentType),
		"rule", r.Rule,
		"memory_limit", r.Context.Resources.MemoryLimit,
		"diagnosis", strings.Join(r.RootCauses, ", "),
		"confidence", r.Confidence,
		"recommended_memory", r.RecommendedMemory,
		"diagnosis_source", r.DiagnosisSource,
		"policy_allowed", r.PolicyAllowed,
		"auto_remediation", r.Remediation,
	)
	return nil
}

var _ Reporter = (*LogReporter)(nil)
