package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.Timeout())
	assert.Equal(t, "ledger.category_summary", cfg.PreferredTool)
}

func TestLoadFile(t *testing.T) {
	for _, k := range []string{"LEDGERMIND_MODEL", "LEDGERMIND_ADDR", "LOG_LEVEL", "OLLAMA_MODEL", "OLLAMA_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "ledgermind.yaml")
	content := `
model: openai:gpt-4o-mini
llm:
  timeout_seconds: 15
  requests_per_minute: 30
ledger:
  files: [exports/march.csv]
cache:
  backend: sqlite
server:
  addr: 127.0.0.1:9000
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o-mini", cfg.Model)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.Equal(t, 30, cfg.LLM.RequestsPerMinute)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens, "unset fields keep defaults")
	assert.Equal(t, []string{"exports/march.csv"}, cfg.Ledger.Files)
	assert.Equal(t, CacheSQLite, cfg.Cache.Backend)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"LEDGERMIND_MODEL":            "claude-sonnet-4-5",
		"LEDGERMIND_LEDGER_DB":        "/data/ledger.db",
		"LEDGERMIND_CACHE_DB":         "/data/runs.db",
		"LOG_LEVEL":                   "debug",
		"OLLAMA_BASE_URL":             "http://gpu-box:11434",
		"OLLAMA_TIMEOUT_SECONDS":      "90",
		"OLLAMA_TEMPERATURE":          "0",
		"LEDGERMIND_TRACING_EXPORTER": "otlp",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
	}))
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model)
	assert.Equal(t, "/data/ledger.db", cfg.Ledger.DB)
	assert.Equal(t, "/data/runs.db", cfg.Cache.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.URL)
	assert.Equal(t, 90*time.Second, cfg.Timeout())
	assert.Equal(t, 0.0, cfg.LLM.Temperature)
	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
}

func TestApplyEnvBadNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{"OLLAMA_TIMEOUT_SECONDS": "soon", "OLLAMA_TEMPERATURE": "warm"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OLLAMA_TIMEOUT_SECONDS")
	assert.Contains(t, err.Error(), "OLLAMA_TEMPERATURE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero timeout", func(c *Config) { c.LLM.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"negative max tokens", func(c *Config) { c.LLM.MaxTokens = -1 }, "max_tokens"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "unknown level"},
		{"bad backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }, "tracing.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "err = %v", err)
		})
	}
}

func TestProviderModel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "", cfg.ProviderModel())
	cfg.Ollama.Model = "qwen2.5:7b"
	assert.Equal(t, "ollama:qwen2.5:7b", cfg.ProviderModel())
	cfg.Model = "gpt-4o"
	assert.Equal(t, "gpt-4o", cfg.ProviderModel())
}
