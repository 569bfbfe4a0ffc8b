package config

import "time"

// Default returns a Config populated with all default values.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in defaults for any unset fields. It is safe to call
// on a partially populated config loaded from YAML.
func (c *Config) ApplyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "demo"
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Policy.Path == "" {
		c.Policy.Path = "policy.json"
	}
	if c.Collector.EventLimit <= 0 {
		c.Collector.EventLimit = 5
	}
	if c.Collector.LogTailLines <= 0 {
		c.Collector.LogTailLines = 50
	}
	if c.Diagnoser.Backend == "" {
		c.Diagnoser.Backend = "ollama"
	}
	if c.Diagnoser.Timeout <= 0 {
		c.Diagnoser.Timeout = 20 * time.Minute
	}
	if c.Diagnoser.Ollama.URL == "" {
		c.Diagnoser.Ollama.URL = "http://localhost:11434/api/generate"
	}
	if c.Diagnoser.Ollama.Model == "" {
		c.Diagnoser.Ollama.Model = "mistral:latest"
	}
	if c.Diagnoser.Bedrock.MaxTokens <= 0 {
		c.Diagnoser.Bedrock.MaxTokens = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Metrics.Port <= 0 {
		c.Metrics.Port = 8080
	}
	if c.Health.Port <= 0 {
		c.Health.Port = 8081
	}
}
