// Package main is the entrypoint for the incident triage agent. It loads
// configuration and the remediation policy, builds the Kubernetes clients and
// the pipeline components, starts the health probe and metrics servers, and
// runs the scan loop until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/aqrpole/kube-ai-sre-agent/internal/agent"
	"github.com/aqrpole/kube-ai-sre-agent/internal/collector"
	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/detector"
	"github.com/aqrpole/kube-ai-sre-agent/internal/diagnoser"
	"github.com/aqrpole/kube-ai-sre-agent/internal/filter"
	"github.com/aqrpole/kube-ai-sre-agent/internal/health"
	"github.com/aqrpole/kube-ai-sre-agent/internal/metrics"
	"github.com/aqrpole/kube-ai-sre-agent/internal/policy"
	"github.com/aqrpole/kube-ai-sre-agent/internal/report"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the agent configuration file")
	kubeconfig := flag.String("kubeconfig", "", "path to a kubeconfig file for out-of-cluster use")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("configuration invalid", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		slog.Error("logging configuration invalid", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting triage agent",
		"namespace", cfg.Namespace,
		"scan_interval", cfg.ScanInterval,
		"diagnoser", cfg.Diagnoser.Backend,
	)

	if err := run(cfg, *kubeconfig, logger); err != nil {
		logger.Error("agent exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
}

func run(cfg *config.Config, kubeconfig string, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// The policy document is mandatory: the agent must not scan without it.
	doc, err := policy.LoadFromFile(cfg.Policy.Path)
	if err != nil {
		return fmt.Errorf("loading policy: %w", err)
	}
	gate, err := policy.NewGate(doc)
	if err != nil {
		return fmt.Errorf("building policy gate: %w", err)
	}

	restConfig, err := buildRestConfig(kubeconfig)
	if err != nil {
		return fmt.Errorf("building kubernetes config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("creating kubernetes clientset: %w", err)
	}
	kube := collector.NewClientset(clientset)

	var metricsClient collector.MetricsClient
	if cfg.Collector.Metrics {
		mc, err := collector.NewMetricsClientset(restConfig)
		if err != nil {
			// Usage metrics are best-effort even at startup: a cluster
			// without metrics-server still gets full triage.
			logger.Warn("metrics.k8s.io client unavailable, usage readings disabled", "error", err)
		} else {
			metricsClient = mc
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	m := metrics.NewMetrics(registry)

	healthHandler := health.NewHandler(health.WithLogger(logger))
	healthHandler.SetPolicyLoaded(true)

	healthSrv, err := health.NewServer(healthHandler, cfg.Health.Port)
	if err != nil {
		return fmt.Errorf("creating health server: %w", err)
	}
	go func() {
		if serveErr := healthSrv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("health server failed", "error", serveErr)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			if serveErr := metricsSrv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", serveErr)
			}
		}()
	}

	diag, err := diagnoser.New(ctx, cfg.Diagnoser, logger)
	if err != nil {
		return fmt.Errorf("creating diagnoser: %w", err)
	}

	flt, err := filter.NewEngine(cfg.Filters, logger)
	if err != nil {
		return fmt.Errorf("compiling filters: %w", err)
	}

	reporters, err := buildReporters(ctx, cfg.Reporters, logger)
	if err != nil {
		return fmt.Errorf("building reporters: %w", err)
	}

	a, err := agent.New(
		*cfg,
		kube,
		detector.New(logger),
		collector.New(kube, metricsClient, cfg.Collector, m, logger),
		flt,
		gate,
		diag,
		reporters,
		m,
		agent.WithLogger(logger),
		agent.WithHealth(healthHandler),
	)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	runErr := a.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	logger.Info("agent stopped")
	return nil
}

// buildRestConfig prefers the in-cluster service account and falls back to a
// kubeconfig for local runs.
func buildRestConfig(kubeconfig string) (*rest.Config, error) {
	if restConfig, err := rest.InClusterConfig(); err == nil {
		return restConfig, nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// buildReporters assembles the delivery targets. The log reporter is always
// present; webhook and S3 are added when enabled.
func buildReporters(ctx context.Context, cfg config.ReportersConfig, logger *slog.Logger) ([]report.Reporter, error) {
	logReporter, err := report.NewLogReporter(logger)
	if err != nil {
		return nil, err
	}
	reporters := []report.Reporter{logReporter}

	if cfg.Webhook.Enabled {
		w, err := report.NewWebhookReporter(cfg.Webhook, logger)
		if err != nil {
			return nil, fmt.Errorf("webhook reporter: %w", err)
		}
		reporters = append(reporters, w)
	}
	if cfg.S3.Enabled {
		s, err := report.NewS3Reporter(ctx, cfg.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 reporter: %w", err)
		}
		reporters = append(reporters, s)
	}
	return reporters, nil
}
