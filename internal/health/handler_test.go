package health

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testHandler(opts ...Option) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(append([]Option{WithLogger(logger)}, opts...)...)
}

func TestLivez_FreshHeartbeat(t *testing.T) {
	h := testHandler()

	rec := httptest.NewRecorder()
	h.HandleLivez(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestLivez_StaleHeartbeat(t *testing.T) {
	now := time.Now()
	h := testHandler(WithNowFunc(func() time.Time { return now }))

	// Advance the clock past the heartbeat timeout without a new heartbeat.
	now = now.Add(HeartbeatTimeout + time.Second)

	rec := httptest.NewRecorder()
	h.HandleLivez(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	// A heartbeat restores liveness.
	h.UpdateHeartbeat()
	rec = httptest.NewRecorder()
	h.HandleLivez(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status after heartbeat = %d, want 200", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	h := testHandler()

	rec := httptest.NewRecorder()
	h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("initial status = %d, want 503", rec.Code)
	}

	h.SetAPIServerReachable(true)
	h.SetPolicyLoaded(true)
	h.SetDiagnoserHealthy(true)

	rec = httptest.NewRecorder()
	h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	// Any condition going false flips readiness back.
	h.SetDiagnoserHealthy(false)
	rec = httptest.NewRecorder()
	h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 after diagnoser unhealthy", rec.Code)
	}
}

func TestNewServer_PortValidation(t *testing.T) {
	h := testHandler()
	if _, err := NewServer(h, 0); err == nil {
		t.Error("expected error for port 0")
	}
	if _, err := NewServer(nil, 8081); err == nil {
		t.Error("expected error for nil handler")
	}
}
