package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("THREAT_INTEL_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DataSource != "sqlite" {
		t.Errorf("data_source = %q, want sqlite", cfg.DataSource)
	}
	if cfg.Agent.BatchSize != 25 {
		t.Errorf("batch_size = %d, want 25", cfg.Agent.BatchSize)
	}
	if cfg.Agent.LookbackHours != 24 {
		t.Errorf("lookback_hours = %d, want 24", cfg.Agent.LookbackHours)
	}
	if cfg.Agent.EvaluationTTLDays != 7 {
		t.Errorf("evaluation_ttl_days = %d, want 7", cfg.Agent.EvaluationTTLDays)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("ollama base_url = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Email.Enabled {
		t.Error("email must be disabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_source: opensearch
opensearch:
  host: search.internal
  port: 9201
agent:
  batch_size: 5
known_domains:
  suffixes:
    - example.org
  exact:
    - pi.hole
prompts:
  system_prompt: "analyst prompt"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("THREAT_INTEL_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DataSource != "opensearch" {
		t.Errorf("data_source = %q, want opensearch", cfg.DataSource)
	}
	if cfg.OpenSearch.Host != "search.internal" || cfg.OpenSearch.Port != 9201 {
		t.Errorf("opensearch = %s:%d", cfg.OpenSearch.Host, cfg.OpenSearch.Port)
	}
	if cfg.Agent.BatchSize != 5 {
		t.Errorf("batch_size = %d, want 5", cfg.Agent.BatchSize)
	}
	// Unset keys still fall back to defaults.
	if cfg.Agent.LookbackHours != 24 {
		t.Errorf("lookback_hours = %d, want default 24", cfg.Agent.LookbackHours)
	}
	if len(cfg.KnownDomains.Suffixes) != 1 || cfg.KnownDomains.Suffixes[0] != "example.org" {
		t.Errorf("suffixes = %v", cfg.KnownDomains.Suffixes)
	}
	if cfg.Prompts.SystemPrompt != "analyst prompt" {
		t.Errorf("system_prompt = %q", cfg.Prompts.SystemPrompt)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("THREAT_INTEL_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("THREAT_INTEL_OLLAMA__MODEL", "llama3:8b")
	t.Setenv("THREAT_INTEL_DATA_SOURCE", "opensearch")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Ollama.Model != "llama3:8b" {
		t.Errorf("ollama model = %q, want llama3:8b", cfg.Ollama.Model)
	}
	if cfg.DataSource != "opensearch" {
		t.Errorf("data_source = %q, want opensearch", cfg.DataSource)
	}
}
