// Package config loads process-wide settings from config.yaml with
// THREAT_INTEL_-prefixed environment overrides. The resulting Config is
// immutable and handed to constructors explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// DataSource selects the storage backend: "sqlite" or "opensearch".
	DataSource string `koanf:"data_source"`

	SQLite     SQLiteConfig     `koanf:"sqlite"`
	OpenSearch OpenSearchConfig `koanf:"opensearch"`
	Ollama     OllamaConfig     `koanf:"ollama"`
	Agent      AgentConfig      `koanf:"agent"`
	Email      EmailConfig      `koanf:"email"`

	KnownDomains KnownDomainsConfig `koanf:"known_domains"`
	Prompts      PromptsConfig      `koanf:"prompts"`
	Output       OutputConfig       `koanf:"output"`
}

type SQLiteConfig struct {
	// PiholeDB is Pi-hole's FTL database, opened read-only.
	PiholeDB string `koanf:"pihole_db"`
	// EvalDB holds this tool's own evaluation ledger.
	EvalDB string `koanf:"eval_db"`
}

type OpenSearchConfig struct {
	Host              string `koanf:"host"`
	Port              int    `koanf:"port"`
	PiholeIndexPrefix string `koanf:"pihole_index_prefix"`
	EvaluationsIndex  string `koanf:"evaluations_index"`
}

type OllamaConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

type AgentConfig struct {
	BatchSize                int `koanf:"batch_size"`
	LookbackHours            int `koanf:"lookback_hours"`
	PreviousEvaluationsCount int `koanf:"previous_evaluations_count"`
	EvaluationTTLDays        int `koanf:"evaluation_ttl_days"`
	EnrichConcurrency        int `koanf:"enrich_concurrency"`
}

type EmailConfig struct {
	Enabled    bool     `koanf:"enabled"`
	SMTPHost   string   `koanf:"smtp_host"`
	SMTPPort   int      `koanf:"smtp_port"`
	Sender     string   `koanf:"sender"`
	Recipients []string `koanf:"recipients"`
}

// KnownDomainsConfig is the static allowlist: suffixes matched dot-aware,
// exact entries matched whole.
type KnownDomainsConfig struct {
	Suffixes []string `koanf:"suffixes"`
	Exact    []string `koanf:"exact"`
}

type PromptsConfig struct {
	SystemPrompt              string `koanf:"system_prompt"`
	BatchUserPrompt           string `koanf:"batch_user_prompt"`
	PreviousEvaluationsHeader string `koanf:"previous_evaluations_header"`
	NoPreviousEvaluations     string `koanf:"no_previous_evaluations"`
}

type OutputConfig struct {
	SummaryHeader    string `koanf:"summary_header"`
	SummaryFooter    string `koanf:"summary_footer"`
	StatsTemplate    string `koanf:"stats_template"`
	NoThreatsMessage string `koanf:"no_threats_message"`
	AlertPrefix      string `koanf:"alert_prefix"`
}

const envPrefix = "THREAT_INTEL_"

// Load reads config.yaml (path overridable via THREAT_INTEL_CONFIG_PATH),
// overlays environment variables, and fills defaults.
func Load() (*Config, error) {
	path := os.Getenv(envPrefix + "CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Env vars override file values: THREAT_INTEL_OLLAMA__MODEL -> ollama.model
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"data_source":                      "sqlite",
		"sqlite.pihole_db":                 "/etc/pihole/pihole-FTL.db",
		"sqlite.eval_db":                   "/data/evaluations.db",
		"opensearch.host":                  "localhost",
		"opensearch.port":                  9200,
		"opensearch.pihole_index_prefix":   "pihole",
		"opensearch.evaluations_index":     "pihole-evaluations",
		"ollama.base_url":                  "http://localhost:11434",
		"ollama.model":                     "qwen3:14b",
		"agent.batch_size":                 25,
		"agent.lookback_hours":             24,
		"agent.previous_evaluations_count": 20,
		"agent.evaluation_ttl_days":        7,
		"agent.enrich_concurrency":         10,
		"email.enabled":                    false,
		"email.smtp_host":                  "localhost",
		"email.smtp_port":                  1025,
		"email.sender":                     "threat-intel@pihole.local",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}
