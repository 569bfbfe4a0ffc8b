package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
)

const webhookReporterName = "webhook"

// WebhookReporter posts reports to an arbitrary HTTP endpoint as JSON.
type WebhookReporter struct {
	client   *http.Client
	url      string
	headers  map[string]string
	logger   *slog.Logger
	retryCfg retryConfig
}

// NewWebhookReporter creates a webhook reporter from config.
func NewWebhookReporter(cfg config.WebhookReporterConfig, logger *slog.Logger) (*WebhookReporter, error) {
	if logger == nil {
		return nil, errNilLogger
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook reporter: url must not be empty")
	}

	headers := cfg.Headers
	if headers == nil {
		headers = make(map[string]string)
	}

	return &WebhookReporter{
		client:   &http.Client{Timeout: 30 * time.Second},
		url:      cfg.URL,
		headers:  headers,
		logger:   logger,
		retryCfg: defaultRetryConfig(),
	}, nil
}

func (w *WebhookReporter) Name() string { return webhookReporterName }

// Deliver sends the report to the webhook endpoint with retry logic.
func (w *WebhookReporter) Deliver(ctx context.Context, r *Report) error {
	if r == nil {
		return errNilReport
	}
	return deliverWithRetry(ctx, w.logger, webhookReporterName, w.retryCfg, func(ctx context.Context) error {
		return w.deliver(ctx, r)
	})
}

func (w *WebhookReporter) deliver(ctx context.Context, r *Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("webhook reporter: marshaling report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook reporter: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook reporter: sending request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook reporter: unexpected status %d", resp.StatusCode)
	}
	return nil
}

var _ Reporter = (*WebhookReporter)(nil)
