package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/straja-ai/adaware/internal/lexicon"
	"github.com/straja-ai/adaware/internal/scoring"
)

// Config holds AdAware configuration.
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Security   SecurityConfig     `yaml:"security"`
	Logging    LoggingConfig      `yaml:"logging"`
	Telemetry  TelemetryConfig    `yaml:"telemetry"`
	Opinion    OpinionConfig      `yaml:"opinion"`
	Cache      CacheConfig        `yaml:"cache"`
	Scoring    scoring.Thresholds `yaml:"scoring"`
	Lexicon    lexicon.Extras     `yaml:"lexicon"`
	Catalog    CatalogConfig      `yaml:"catalog"`
	Reputation ReputationConfig   `yaml:"reputation"`
	NLP        NLPConfig          `yaml:"nlp"`
	History    HistoryConfig      `yaml:"history"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	Mode            string        `yaml:"mode"` // gin mode: release | debug | test
}

// SecurityConfig maps API keys to clients. When disabled every request is
// attributed to the anonymous client.
type SecurityConfig struct {
	Enabled bool           `yaml:"enabled"`
	Clients []ClientConfig `yaml:"clients"`
}

type ClientConfig struct {
	ID           string   `yaml:"id"`
	APIKeys      []string `yaml:"api_keys"`
	APIKeyHashes []string `yaml:"api_key_hashes"` // bcrypt, see `adaware hash-key`
	AllowOpinion *bool    `yaml:"allow_opinion"`  // nil means allowed
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // otlp | prometheus
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
}

// OpinionConfig selects the external opinion provider.
type OpinionConfig struct {
	Provider             string        `yaml:"provider"` // none | openai | gemini
	Model                string        `yaml:"model"`
	BaseURL              string        `yaml:"base_url"`
	APIKey               string        `yaml:"api_key"`
	APIKeyEnv            string        `yaml:"api_key_env"`
	Timeout              time.Duration `yaml:"timeout"`
	RatePerSec           float64       `yaml:"rate_per_sec"`
	Burst                int           `yaml:"burst"`
	AllowPrivateNetworks bool          `yaml:"allow_private_networks"`
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type CatalogConfig struct {
	Path  string `yaml:"path"`  // empty uses the built-in brand list
	Watch bool   `yaml:"watch"` // reload path on change while serving
}

type ReputationConfig struct {
	TrustedDomains []string `yaml:"trusted_domains"`
}

type NLPConfig struct {
	ModelDir string `yaml:"model_dir"` // ONNX sentiment bundle; empty uses the lexicon only
}

type HistoryConfig struct {
	Backend    string       `yaml:"backend"` // memory | postgres | badger | none
	Path       string       `yaml:"path"`    // badger data directory
	DSN        string       `yaml:"dsn"`
	DSNEnv     string       `yaml:"dsn_env"`
	MaxRecords int          `yaml:"max_records"`
	QueueSize  int          `yaml:"queue_size"`
	Workers    int          `yaml:"workers"`
	Sinks      []SinkConfig `yaml:"sinks"`
}

type SinkConfig struct {
	Type    string            `yaml:"type"` // file_jsonl | webhook | s3
	Path    string            `yaml:"path"` // file_jsonl; may contain {date}
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`

	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default is the configuration used without a file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Telemetry.Exporter == "" {
		cfg.Telemetry.Exporter = "prometheus"
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "adaware"
	}

	if cfg.Opinion.Provider == "" {
		cfg.Opinion.Provider = "none"
	}
	if cfg.Opinion.Timeout <= 0 {
		cfg.Opinion.Timeout = 12 * time.Second
	}
	if cfg.Opinion.RatePerSec <= 0 {
		cfg.Opinion.RatePerSec = 2
	}
	if cfg.Opinion.Burst <= 0 {
		cfg.Opinion.Burst = 4
	}
	if cfg.Opinion.APIKeyEnv == "" {
		switch cfg.Opinion.Provider {
		case "openai":
			cfg.Opinion.APIKeyEnv = "OPENAI_API_KEY"
		case "gemini":
			cfg.Opinion.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if cfg.Opinion.Model == "" {
		switch cfg.Opinion.Provider {
		case "openai":
			cfg.Opinion.Model = "gpt-4o-mini"
		case "gemini":
			cfg.Opinion.Model = "gemini-1.5-flash"
		}
	}

	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 1024
	}

	cfg.Scoring = cfg.Scoring.WithDefaults()

	if cfg.History.Backend == "" {
		cfg.History.Backend = "memory"
	}
	if cfg.History.DSNEnv == "" {
		cfg.History.DSNEnv = "ADAWARE_POSTGRES_DSN"
	}
	if cfg.History.QueueSize <= 0 {
		cfg.History.QueueSize = 1000
	}
	if cfg.History.Workers <= 0 {
		cfg.History.Workers = 1
	}
}

// ResolvedAPIKey resolves the key from the config or its env var.
func (c OpinionConfig) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

// ResolvedDSN returns the DSN from the config or its env var.
func (h HistoryConfig) ResolvedDSN() string {
	if h.DSN != "" {
		return h.DSN
	}
	if h.DSNEnv != "" {
		return os.Getenv(h.DSNEnv)
	}
	return ""
}
