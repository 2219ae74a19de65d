package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"coletores/normalization/algorithms"
	"coletores/source"
)

// Config is the full pipeline configuration. It is loaded once at startup,
// validated, and passed down explicitly; no package reads it from a global.
type Config struct {
	// Matching
	ConfidenceThreshold float64            `json:"confidence_threshold" yaml:"confidence_threshold"`
	SimilarityWeights   algorithms.Weights `json:"similarity_weights" yaml:"similarity_weights"`

	// NER fallback
	NERTriggerThreshold float64 `json:"ner_trigger_threshold" yaml:"ner_trigger_threshold"`
	NERTimeoutSeconds   int     `json:"ner_timeout_seconds" yaml:"ner_timeout_seconds"`
	NERAPIKey           string  `json:"ner_api_key" yaml:"ner_api_key"`
	NERModel            string  `json:"ner_model" yaml:"ner_model"`

	// Processing
	BatchSize int `json:"batch_size" yaml:"batch_size"`
	Workers   int `json:"workers" yaml:"workers"`

	// Storage
	CanonicalDatabasePath string `json:"canonical_database_path" yaml:"canonical_database_path"`
	ProgressDatabasePath  string `json:"progress_database_path" yaml:"progress_database_path"`

	// Source
	SourceCSVPath      string                    `json:"source_csv_path" yaml:"source_csv_path"`
	SourceXLSXPath     string                    `json:"source_xlsx_path" yaml:"source_xlsx_path"`
	SourceIDColumn     string                    `json:"source_id_column" yaml:"source_id_column"`
	SourceNameColumn   string                    `json:"source_name_column" yaml:"source_name_column"`
	SourceSQLite       source.SQLiteSourceConfig `json:"source_sqlite" yaml:"source_sqlite"`

	// Output
	CSVOutputPath string `json:"csv_output_path" yaml:"csv_output_path"`

	// Curator-extendable classifier keyword lists.
	InstitutionKeywords []string `json:"institution_keywords" yaml:"institution_keywords"`
	GroupKeywords       []string `json:"group_keywords" yaml:"group_keywords"`

	// Review API
	Port string `json:"port" yaml:"port"`

	// Institution verification via web search (off by default).
	WebSearchEnabled bool `json:"web_search_enabled" yaml:"web_search_enabled"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Default returns the configuration with every tuning parameter at its
// documented default.
func Default() *Config {
	return &Config{
		ConfidenceThreshold:   0.70,
		SimilarityWeights:     algorithms.DefaultWeights(),
		NERTriggerThreshold:   0.85,
		NERTimeoutSeconds:     5,
		BatchSize:             10000,
		Workers:               4,
		CanonicalDatabasePath: "data/canonical.db",
		ProgressDatabasePath:  "data/progress.db",
		SourceNameColumn:      "recordedBy",
		CSVOutputPath:         "data/collectors.csv",
		Port:                  "8080",
		LogLevel:              "info",
	}
}

// Load reads YAML configuration from path (when non-empty) over the
// defaults, then applies environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironment overrides selected options from environment variables,
// mainly credentials that do not belong in a config file.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("COLETORES_NER_API_KEY"); v != "" {
		c.NERAPIKey = v
	}
	if v := os.Getenv("COLETORES_NER_MODEL"); v != "" {
		c.NERModel = v
	}
	if v := os.Getenv("COLETORES_PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("COLETORES_DB_PATH"); v != "" {
		c.CanonicalDatabasePath = v
	}
	if v := os.Getenv("COLETORES_WORKERS"); v != "" {
		if workers, err := strconv.Atoi(v); err == nil {
			c.Workers = workers
		}
	}
}

// NERTimeout returns the per-call deadline for the NER adapter.
func (c *Config) NERTimeout() time.Duration {
	return time.Duration(c.NERTimeoutSeconds) * time.Second
}
