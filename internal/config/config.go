// Package config defines the configuration struct for the triage agent.
// Configuration is loaded once at startup from a YAML file and passed into
// each component; there are no ambient mutable globals.
package config

import "time"

// DefaultConfigPath is the default filesystem path for the agent config file.
const DefaultConfigPath = "/etc/kube-ai-sre-agent/config.yaml"

// Config is the top-level, immutable agent configuration.
type Config struct {
	// Namespace is the namespace the agent scans for problematic pods.
	Namespace string `yaml:"namespace"`

	// ScanInterval is the fixed delay between scan cycles.
	ScanInterval time.Duration `yaml:"scanInterval"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Policy configures the remediation policy document.
	Policy PolicyConfig `yaml:"policy"`

	// Collector configures signal collection limits.
	Collector CollectorConfig `yaml:"collector"`

	// Filters configures incident suppression.
	Filters FiltersConfig `yaml:"filters"`

	// Diagnoser configures the external diagnosis backend.
	Diagnoser DiagnoserConfig `yaml:"diagnoser"`

	// Reporters configures where incident reports are delivered.
	Reporters ReportersConfig `yaml:"reporters"`

	// Workers is the number of concurrent incident pipelines per cycle.
	Workers int `yaml:"workers"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health configures the health probe port.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig controls the logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PolicyConfig locates the remediation policy document.
type PolicyConfig struct {
	// Path is the filesystem path of the JSON policy document. Loading it
	// is fatal at startup when the file is missing or malformed.
	Path string `yaml:"path"`
}

// CollectorConfig bounds signal collection.
type CollectorConfig struct {
	// EventLimit is the maximum number of events fetched per incident.
	EventLimit int `yaml:"eventLimit"`

	// LogTailLines is the number of log lines requested from the API server.
	LogTailLines int64 `yaml:"logTailLines"`

	// Metrics toggles the optional usage-metrics lookup (metrics.k8s.io).
	Metrics bool `yaml:"metrics"`
}

// FiltersConfig holds incident suppression settings.
type FiltersConfig struct {
	// ExcludeNamespaces lists namespace names or regex patterns whose
	// incidents are suppressed.
	ExcludeNamespaces []string `yaml:"excludeNamespaces"`

	// SuppressExpressions are CEL expressions evaluated against each
	// incident; any expression returning true suppresses the incident.
	SuppressExpressions []string `yaml:"suppressExpressions"`
}

// DiagnoserConfig configures the diagnosis backend.
type DiagnoserConfig struct {
	// Backend selects the diagnosis backend: "ollama", "bedrock", or "noop".
	Backend string `yaml:"backend"`

	// Timeout bounds a single diagnosis call. The call is cancelled on
	// process shutdown regardless of the remaining timeout.
	Timeout time.Duration `yaml:"timeout"`

	Ollama  OllamaConfig  `yaml:"ollama"`
	Bedrock BedrockConfig `yaml:"bedrock"`
}

// OllamaConfig configures the Ollama generate-API backend.
type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// BedrockConfig configures the AWS Bedrock backend.
type BedrockConfig struct {
	Region      string  `yaml:"region"`
	ModelID     string  `yaml:"modelId"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

// ReportersConfig configures report delivery targets. The log reporter is
// always on and not configurable.
type ReportersConfig struct {
	Webhook WebhookReporterConfig `yaml:"webhook"`
	S3      S3ReporterConfig      `yaml:"s3"`
}

// WebhookReporterConfig configures the generic webhook reporter.
type WebhookReporterConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// S3ReporterConfig configures the S3 archival reporter.
type S3ReporterConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Prefix  string `yaml:"prefix"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// HealthConfig configures the health probe endpoint.
type HealthConfig struct {
	Port int `yaml:"port"`
}
