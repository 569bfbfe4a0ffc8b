package config

import (
	"fmt"
	"strings"
)

// validDiagnoserBackends is the set of recognized diagnoser backend names.
var validDiagnoserBackends = map[string]bool{
	"ollama":  true,
	"bedrock": true,
	"noop":    true,
}

// Validate checks the config for invalid or contradictory settings.
// It should be called after ApplyDefaults. On the first error encountered,
// it returns a descriptive error; the agent should crash with this error
// at startup.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scanInterval must be positive, got %s", c.ScanInterval)
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Policy.Path == "" {
		return fmt.Errorf("policy.path must not be empty")
	}
	if c.Collector.EventLimit < 1 {
		return fmt.Errorf("collector.eventLimit must be >= 1, got %d", c.Collector.EventLimit)
	}
	if c.Collector.LogTailLines < 1 {
		return fmt.Errorf("collector.logTailLines must be >= 1, got %d", c.Collector.LogTailLines)
	}
	if err := c.validateDiagnoser(); err != nil {
		return err
	}
	if err := c.validateReporters(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be in 1..65535, got %d", c.Metrics.Port)
	}
	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be in 1..65535, got %d", c.Health.Port)
	}
	if c.Health.Port == c.Metrics.Port {
		return fmt.Errorf("health.port and metrics.port must differ, both are %d", c.Health.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid log format %q: must be json or text", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateDiagnoser() error {
	if !validDiagnoserBackends[c.Diagnoser.Backend] {
		return fmt.Errorf("invalid diagnoser backend %q: must be one of ollama, bedrock, noop", c.Diagnoser.Backend)
	}
	if c.Diagnoser.Timeout <= 0 {
		return fmt.Errorf("diagnoser.timeout must be positive, got %s", c.Diagnoser.Timeout)
	}
	switch c.Diagnoser.Backend {
	case "ollama":
		if c.Diagnoser.Ollama.URL == "" {
			return fmt.Errorf("diagnoser.ollama.url must not be empty")
		}
		if c.Diagnoser.Ollama.Model == "" {
			return fmt.Errorf("diagnoser.ollama.model must not be empty")
		}
	case "bedrock":
		if c.Diagnoser.Bedrock.Region == "" {
			return fmt.Errorf("diagnoser.bedrock.region must not be empty")
		}
		if c.Diagnoser.Bedrock.ModelID == "" {
			return fmt.Errorf("diagnoser.bedrock.modelId must not be empty")
		}
		if c.Diagnoser.Bedrock.MaxTokens < 1 {
			return fmt.Errorf("diagnoser.bedrock.maxTokens must be >= 1, got %d", c.Diagnoser.Bedrock.MaxTokens)
		}
	}
	return nil
}

func (c *Config) validateReporters() error {
	if c.Reporters.Webhook.Enabled && c.Reporters.Webhook.URL == "" {
		return fmt.Errorf("reporters.webhook.url must not be empty when the webhook reporter is enabled")
	}
	if c.Reporters.S3.Enabled {
		if c.Reporters.S3.Bucket == "" {
			return fmt.Errorf("reporters.s3.bucket must not be empty when the s3 reporter is enabled")
		}
		if c.Reporters.S3.Region == "" {
			return fmt.Errorf("reporters.s3.region must not be empty when the s3 reporter is enabled")
		}
	}
	return nil
}
