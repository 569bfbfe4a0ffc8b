// Package diagnoser defines the Diagnoser interface and provides LLM-backed
// implementations that turn an incident context into a raw diagnosis
// response. Normalization of the raw response into a Diagnosis lives in
// normalize.go and is shared by all backends.
package diagnoser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// Diagnoser sends an incident context to a diagnosis backend and returns the
// raw response text. Callers normalize the text; a backend never shapes its
// own Diagnosis.
type Diagnoser interface {
	// Name returns the backend identifier (e.g., "ollama", "bedrock").
	Name() string

	// Diagnose sends the incident context and returns the raw response text.
	Diagnose(ctx context.Context, cx model.IncidentContext) (string, error)

	// Healthy reports whether the backend is configured and reachable.
	Healthy(ctx context.Context) bool
}

// New builds the Diagnoser selected by cfg.Backend.
func New(ctx context.Context, cfg config.DiagnoserConfig, logger *slog.Logger) (Diagnoser, error) {
	switch cfg.Backend {
	case "ollama":
		return NewOllama(cfg.Ollama, logger)
	case "bedrock":
		return NewBedrock(ctx, cfg.Bedrock, logger)
	case "noop":
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown diagnoser backend %q", cfg.Backend)
	}
}
