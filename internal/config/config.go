// Package config loads companion-memory configuration.
//
// Precedence: defaults, then the YAML file, then COMPANION_MEMORY_* environment
// variables. CLI flags are applied by the caller on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COMPANION_MEMORY_"

// Config is the complete configuration.
type Config struct {
	DBPath    string          `yaml:"db_path"`
	Memory    MemoryConfig    `yaml:"memory"`
	Session   SessionConfig   `yaml:"session"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// MemoryConfig holds tier policy.
type MemoryConfig struct {
	WorkingCapacity      int           `yaml:"working_capacity"`
	WorkingTTL           time.Duration `yaml:"working_ttl"`
	ImportanceThreshold  float64       `yaml:"importance_threshold"`
	SemanticAccessCount  int           `yaml:"semantic_access_count"`
	EpisodicAccessCount  int           `yaml:"episodic_access_count"`
	ScanLimit            int           `yaml:"scan_limit"`
	StatsLimit           int           `yaml:"stats_limit"`
	DefaultRetrieveLimit int           `yaml:"default_retrieve_limit"`
	DefaultLayerLimit    int           `yaml:"default_layer_limit"`
}

// SessionConfig holds session recorder settings.
type SessionConfig struct {
	FlushEvery    int `yaml:"flush_every"`
	HistoryLimit  int `yaml:"history_limit"`
	AverageWindow int `yaml:"average_window"`
}

// RetrievalConfig selects the ranker: "lexical" or "embedding".
type RetrievalConfig struct {
	Ranker string `yaml:"ranker"`
}

// EmbeddingConfig configures the optional embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "", "ollama", "openai"
	Model    string `yaml:"model"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig configures the prometheus listener of the run command.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DBPath: filepath.Join(home, ".companion-memory", "memory.db"),
		Memory: MemoryConfig{
			WorkingCapacity:      7,
			WorkingTTL:           5 * time.Minute,
			ImportanceThreshold:  0.7,
			SemanticAccessCount:  3,
			EpisodicAccessCount:  1,
			ScanLimit:            100,
			StatsLimit:           1000,
			DefaultRetrieveLimit: 5,
			DefaultLayerLimit:    10,
		},
		Session: SessionConfig{
			FlushEvery:    10,
			HistoryLimit:  10,
			AverageWindow: 100,
		},
		Retrieval: RetrievalConfig{Ranker: "lexical"},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (optional) over the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("DB", &c.DBPath)
	str("RANKER", &c.Retrieval.Ranker)
	str("EMBED_PROVIDER", &c.Embedding.Provider)
	str("EMBED_MODEL", &c.Embedding.Model)
	str("EMBED_URL", &c.Embedding.URL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("METRICS_ADDR", &c.Metrics.Addr)
	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}

	if v, ok := os.LookupEnv(EnvPrefix + "WORKING_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKING_CAPACITY: %w", EnvPrefix, err)
		}
		c.Memory.WorkingCapacity = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "WORKING_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sWORKING_TTL: %w", EnvPrefix, err)
		}
		c.Memory.WorkingTTL = d
	}
	if v, ok := os.LookupEnv(EnvPrefix + "IMPORTANCE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sIMPORTANCE_THRESHOLD: %w", EnvPrefix, err)
		}
		c.Memory.ImportanceThreshold = f
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Memory.WorkingCapacity < 1 {
		errs = append(errs, fmt.Errorf("memory.working_capacity must be >= 1, got %d", c.Memory.WorkingCapacity))
	}
	if c.Memory.WorkingTTL < 0 {
		errs = append(errs, fmt.Errorf("memory.working_ttl must not be negative"))
	}
	if c.Memory.ImportanceThreshold < 0 || c.Memory.ImportanceThreshold > 1 {
		errs = append(errs, fmt.Errorf("memory.importance_threshold must be within [0, 1], got %v", c.Memory.ImportanceThreshold))
	}
	if c.Memory.ScanLimit < c.Memory.WorkingCapacity {
		errs = append(errs, fmt.Errorf("memory.scan_limit must be >= working_capacity"))
	}
	if c.Session.FlushEvery < 0 {
		errs = append(errs, fmt.Errorf("session.flush_every must not be negative"))
	}
	switch c.Retrieval.Ranker {
	case "", "lexical", "embedding":
	default:
		errs = append(errs, fmt.Errorf("retrieval.ranker must be lexical or embedding, got %q", c.Retrieval.Ranker))
	}
	switch c.Embedding.Provider {
	case "", "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be ollama or openai, got %q", c.Embedding.Provider))
	}
	return errors.Join(errs...)
}
