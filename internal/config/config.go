// Package config loads LedgerMind settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/logging"
	"github.com/Jeffawe/LedgerMind/internal/planner"
	"github.com/Jeffawe/LedgerMind/internal/tracing"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheNone   = "none"
)

type Config struct {
	// Model selects the provider, e.g. "claude-sonnet-4-5", "openai:gpt-4o",
	// "ollama:llama3.1:8b". Empty autodetects from API keys.
	Model       string        `yaml:"model"`
	LLM         LLMConfig     `yaml:"llm"`
	Ollama      OllamaConfig  `yaml:"ollama"`
	Ledger      LedgerConfig  `yaml:"ledger"`
	Cache       CacheConfig   `yaml:"cache"`
	Server      ServerConfig  `yaml:"server"`
	Log         LogConfig     `yaml:"log"`
	Tracing     TracingConfig `yaml:"tracing"`
	ProfilesDir string        `yaml:"profiles_dir"`
	// PreferredTool is the fallback plan's tool.
	PreferredTool string `yaml:"preferred_tool"`
}

type LLMConfig struct {
	TimeoutSeconds    float64 `yaml:"timeout_seconds"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
}

type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

type LedgerConfig struct {
	ID string `yaml:"id"`
	DB string `yaml:"db"`
	// Files are JSON or CSV exports served as read-only sources.
	Files []string `yaml:"files"`
}

type CacheConfig struct {
	Backend string `yaml:"backend"`
	DB      string `yaml:"db"`
	Size    int    `yaml:"size"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig selects the span exporter: none, stdout or otlp.
type TracingConfig struct {
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			TimeoutSeconds: 60,
			Temperature:    0.2,
			MaxTokens:      4096,
		},
		Ledger: LedgerConfig{
			ID: domain.DefaultLedgerID,
			DB: "ledgermind.db",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			DB:      "ledgermind-runs.db",
			Size:    256,
		},
		Server:        ServerConfig{Addr: ":8080"},
		Log:           LogConfig{Level: "info", Format: logging.FormatText},
		Tracing:       TracingConfig{Exporter: tracing.ExporterNone},
		PreferredTool: planner.DefaultPreferredTool,
	}
}

// Load reads path over the defaults and then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config.Load: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config.Load: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv applies environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("LEDGERMIND_MODEL", &c.Model)
	str("LEDGERMIND_LEDGER_DB", &c.Ledger.DB)
	str("LEDGERMIND_CACHE_DB", &c.Cache.DB)
	str("LEDGERMIND_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("OLLAMA_BASE_URL", &c.Ollama.URL)
	str("OLLAMA_MODEL", &c.Ollama.Model)
	str("LEDGERMIND_TRACING_EXPORTER", &c.Tracing.Exporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)

	var errs []error
	if v, ok := lookup("OLLAMA_TIMEOUT_SECONDS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("OLLAMA_TIMEOUT_SECONDS: %w", err))
		} else {
			c.LLM.TimeoutSeconds = f
		}
	}
	if v, ok := lookup("OLLAMA_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("OLLAMA_TEMPERATURE: %w", err))
		} else {
			c.LLM.Temperature = f
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.LLM.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_seconds must be positive, got %v", c.LLM.TimeoutSeconds))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	if c.LLM.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("llm.requests_per_minute must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheSQLite, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be memory, sqlite or none, got %q", c.Cache.Backend))
	}
	switch c.Tracing.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter must be none, stdout or otlp, got %q", c.Tracing.Exporter))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Timeout is the model call bound.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds * float64(time.Second))
}

// ProviderModel is the model selector passed to provider resolution. A
// configured Ollama model selects Ollama when no model is set.
func (c Config) ProviderModel() string {
	if c.Model == "" && c.Ollama.Model != "" {
		return "ollama:" + c.Ollama.Model
	}
	return c.Model
}
