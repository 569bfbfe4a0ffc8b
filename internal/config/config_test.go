package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Namespace != "demo" {
		t.Errorf("Namespace = %q, want demo", cfg.Namespace)
	}
	if cfg.ScanInterval != 15*time.Second {
		t.Errorf("ScanInterval = %s, want 15s", cfg.ScanInterval)
	}
	if cfg.Collector.EventLimit != 5 {
		t.Errorf("Collector.EventLimit = %d, want 5", cfg.Collector.EventLimit)
	}
	if cfg.Collector.LogTailLines != 50 {
		t.Errorf("Collector.LogTailLines = %d, want 50", cfg.Collector.LogTailLines)
	}
	if cfg.Diagnoser.Backend != "ollama" {
		t.Errorf("Diagnoser.Backend = %q, want ollama", cfg.Diagnoser.Backend)
	}
	if cfg.Diagnoser.Timeout != 20*time.Minute {
		t.Errorf("Diagnoser.Timeout = %s, want 20m", cfg.Diagnoser.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlDoc := `
namespace: production
scanInterval: 30s
logging:
  level: debug
  format: text
diagnoser:
  backend: noop
  timeout: 5m
workers: 4
`
	cfg, err := Load(strings.NewReader(yamlDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.ApplyDefaults()

	if cfg.Namespace != "production" {
		t.Errorf("Namespace = %q", cfg.Namespace)
	}
	if cfg.ScanInterval != 30*time.Second {
		t.Errorf("ScanInterval = %s", cfg.ScanInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Diagnoser.Backend != "noop" {
		t.Errorf("Diagnoser.Backend = %q", cfg.Diagnoser.Backend)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	if _, err := Load(strings.NewReader("namepsace: typo\n")); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad backend", func(c *Config) { c.Diagnoser.Backend = "gpt" }},
		{"ollama url missing", func(c *Config) { c.Diagnoser.Ollama.URL = "" }},
		{"bedrock region missing", func(c *Config) {
			c.Diagnoser.Backend = "bedrock"
			c.Diagnoser.Bedrock.ModelID = "anthropic.claude-3-haiku"
		}},
		{"webhook url missing", func(c *Config) { c.Reporters.Webhook.Enabled = true }},
		{"s3 bucket missing", func(c *Config) {
			c.Reporters.S3.Enabled = true
			c.Reporters.S3.Region = "eu-west-1"
		}},
		{"port clash", func(c *Config) { c.Health.Port = c.Metrics.Port }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	if _, err := ParseLogLevel("WARN"); err != nil {
		t.Errorf("ParseLogLevel should be case-insensitive: %v", err)
	}
	if _, err := ParseLogLevel("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
}
