// Ollama generate-API backend for local model serving.
package diagnoser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// Ollama calls a local Ollama server's non-streaming generate endpoint. The
// system instruction and the incident JSON travel in a single prompt string.
type Ollama struct {
	url        string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllama creates the Ollama backend. The HTTP client carries no timeout of
// its own; callers bound each Diagnose with a context deadline.
func NewOllama(cfg config.OllamaConfig, logger *slog.Logger) (*Ollama, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ollama: url must not be empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: model must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ollama{
		url:        cfg.URL,
		model:      cfg.Model,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

// ollamaRequest is the generate-API request body.
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaResponse is the non-streaming generate-API response body.
type ollamaResponse struct {
	Response string `json:"response"`
}

// Diagnose posts the incident context to the generate endpoint and returns
// the model's raw response text. Local models can take minutes on a cold
// start, which is why the diagnosis timeout defaults so high.
func (o *Ollama) Diagnose(ctx context.Context, cx model.IncidentContext) (string, error) {
	user, err := userPrompt(cx)
	if err != nil {
		return "", err
	}

	reqBody := ollamaRequest{
		Model:  o.model,
		Prompt: systemPrompt + "\n\n" + user,
		Stream: false,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("ollama: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	o.logger.Info("sending diagnosis request to Ollama",
		"model", o.model,
		"pod", cx.Pod,
		"namespace", cx.Namespace,
	)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return "", fmt.Errorf("ollama: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return "", fmt.Errorf("ollama: parsing response JSON: %w", err)
	}

	return ollamaResp.Response, nil
}

// Healthy reports whether the backend is configured. No probe request is made
// to avoid loading the model outside a diagnosis.
func (o *Ollama) Healthy(ctx context.Context) bool {
	return o.httpClient != nil && o.url != ""
}

var _ Diagnoser = (*Ollama)(nil)
