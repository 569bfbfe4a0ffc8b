package diagnoser

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext() model.IncidentContext {
	return model.IncidentContext{
		IncidentType:      model.IncidentOOMKilled,
		Pod:               "web-0",
		Namespace:         "demo",
		Container:         "app",
		PodStatus:         model.PhaseRunning,
		ObservedBehavior:  "Repeated restarts after memory exhaustion",
		TimeWindowSeconds: 120,
		ContextualSignals: model.ContextSignals{Events: []string{}, LogsTail: []string{}},
	}
}

func TestOllama_Diagnose(t *testing.T) {
	var gotBody ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: `{"root_causes": ["oom"]}`})
	}))
	defer srv.Close()

	o, err := NewOllama(config.OllamaConfig{URL: srv.URL, Model: "mistral:latest"}, testLogger())
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}

	raw, err := o.Diagnose(context.Background(), testContext())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if raw != `{"root_causes": ["oom"]}` {
		t.Errorf("raw = %q", raw)
	}

	if gotBody.Model != "mistral:latest" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if gotBody.Stream {
		t.Error("stream should be false")
	}
	if !strings.Contains(gotBody.Prompt, "SRE incident analysis assistant") {
		t.Error("prompt should carry the system instruction")
	}
	if !strings.Contains(gotBody.Prompt, `"pod": "web-0"`) {
		t.Errorf("prompt should embed the incident context JSON, got:\n%s", gotBody.Prompt)
	}
}

func TestOllama_Diagnose_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o, _ := NewOllama(config.OllamaConfig{URL: srv.URL, Model: "mistral:latest"}, testLogger())
	if _, err := o.Diagnose(context.Background(), testContext()); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestOllama_Diagnose_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	o, _ := NewOllama(config.OllamaConfig{URL: srv.URL, Model: "mistral:latest"}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Diagnose(ctx, testContext()); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestNewOllama_Validation(t *testing.T) {
	if _, err := NewOllama(config.OllamaConfig{Model: "mistral:latest"}, testLogger()); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := NewOllama(config.OllamaConfig{URL: "http://localhost:11434/api/generate"}, testLogger()); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestNew_BackendSelection(t *testing.T) {
	cfg := config.DiagnoserConfig{
		Backend: "noop",
	}
	d, err := New(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Name() != "noop" {
		t.Errorf("Name = %q", d.Name())
	}

	cfg.Backend = "carrier-pigeon"
	if _, err := New(context.Background(), cfg, testLogger()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
