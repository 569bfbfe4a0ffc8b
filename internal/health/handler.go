// Package health provides HTTP handlers for Kubernetes liveness and
// readiness probes.
//
// The Handler struct is goroutine-safe: state is updated from the scan loop
// while HTTP handlers read it concurrently from the probe server.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPort is the default listen port for health probe endpoints.
const DefaultPort = 8081

// HeartbeatTimeout is the maximum time since the last heartbeat before the
// liveness probe reports failure. Must exceed the scan interval with room
// for a slow cycle.
const HeartbeatTimeout = 60 * time.Second

// statusResponse is the JSON body returned by health endpoints.
type statusResponse struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
}

// Handler manages health and readiness state and serves HTTP probe
// endpoints. All state-mutation methods are goroutine-safe.
type Handler struct {
	logger *slog.Logger

	// heartbeat tracks the last time UpdateHeartbeat was called. Stored as
	// UnixNano. Accessed atomically.
	heartbeat atomic.Int64

	// nowFunc returns the current time. Overridable for testing.
	nowFunc func() time.Time

	// mu guards the readiness fields below.
	mu                 sync.RWMutex
	apiServerReachable bool
	policyLoaded       bool
	diagnoserHealthy   bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithNowFunc overrides the time source. Intended for testing.
func WithNowFunc(fn func() time.Time) Option {
	return func(h *Handler) {
		h.nowFunc = fn
	}
}

// NewHandler creates a Handler. The initial heartbeat is set to the current
// time so the liveness probe succeeds immediately after startup.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		logger:  slog.Default(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.heartbeat.Store(h.nowFunc().UnixNano())
	return h
}

// UpdateHeartbeat records that the scan loop is alive. Called once per scan
// cycle.
func (h *Handler) UpdateHeartbeat() {
	h.heartbeat.Store(h.nowFunc().UnixNano())
}

// SetAPIServerReachable updates whether the Kubernetes API server responded
// to the last pod listing.
func (h *Handler) SetAPIServerReachable(reachable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.apiServerReachable = reachable
}

// SetPolicyLoaded updates whether the policy document loaded successfully.
func (h *Handler) SetPolicyLoaded(loaded bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.policyLoaded = loaded
}

// SetDiagnoserHealthy updates whether the diagnosis backend reports healthy.
func (h *Handler) SetDiagnoserHealthy(healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.diagnoserHealthy = healthy
}

// LivezCheck returns nil if the liveness check passes.
func (h *Handler) LivezCheck() error {
	last := time.Unix(0, h.heartbeat.Load())
	elapsed := h.nowFunc().Sub(last)
	if elapsed > HeartbeatTimeout {
		return fmt.Errorf("heartbeat stale: last update %s ago (threshold %s)", elapsed.Round(time.Second), HeartbeatTimeout)
	}
	return nil
}

// ReadyzCheck returns nil if the readiness check passes: the API server is
// reachable, the policy document is loaded, and the diagnoser is healthy.
func (h *Handler) ReadyzCheck() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.apiServerReachable {
		return fmt.Errorf("API server is not reachable")
	}
	if !h.policyLoaded {
		return fmt.Errorf("policy document is not loaded")
	}
	if !h.diagnoserHealthy {
		return fmt.Errorf("diagnoser backend is not healthy")
	}
	return nil
}

// HandleLivez is the HTTP handler for the /healthz liveness endpoint.
func (h *Handler) HandleLivez(w http.ResponseWriter, r *http.Request) {
	if err := h.LivezCheck(); err != nil {
		h.logger.Warn("liveness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{
			Status:  "fail",
			Details: map[string]string{"heartbeat": err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// HandleReadyz is the HTTP handler for the /readyz readiness endpoint.
func (h *Handler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.ReadyzCheck(); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{
			Status:  "fail",
			Details: map[string]string{"reason": err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// NewServeMux creates an http.ServeMux wired to the handler's endpoints.
func (h *Handler) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.HandleLivez)
	mux.HandleFunc("/readyz", h.HandleReadyz)
	return mux
}

// Server wraps an *http.Server for the health probe endpoints.
type Server struct {
	httpServer *http.Server
	handler    *Handler
	logger     *slog.Logger
}

// NewServer creates a health probe HTTP server listening on the given port.
func NewServer(handler *Handler, port int) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("health: handler must not be nil")
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("health: port %d out of valid range [1, 65535]", port)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler.NewServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    handler,
		logger:     handler.logger,
	}, nil
}

// ListenAndServe starts the health probe server. It blocks until shutdown
// and returns http.ErrServerClosed on clean shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("health probe server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Serve starts the server on the given listener. Useful for testing with a
// dynamically assigned port.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("health probe server starting", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("health probe server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, body statusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
