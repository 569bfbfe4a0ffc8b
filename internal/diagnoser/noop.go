package diagnoser

import (
	"context"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// Noop returns an empty response for every incident, so the pipeline runs
// end to end without an LLM backend. Normalization turns the empty response
// into the zero-confidence placeholder diagnosis.
type Noop struct{}

// NewNoop creates the no-op backend.
func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Name() string { return "noop" }

func (n *Noop) Diagnose(ctx context.Context, cx model.IncidentContext) (string, error) {
	return "", nil
}

func (n *Noop) Healthy(ctx context.Context) bool { return true }

var _ Diagnoser = (*Noop)(nil)
