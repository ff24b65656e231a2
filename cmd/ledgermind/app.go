package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Jeffawe/LedgerMind/internal/analysis"
	"github.com/Jeffawe/LedgerMind/internal/cache"
	"github.com/Jeffawe/LedgerMind/internal/composer"
	"github.com/Jeffawe/LedgerMind/internal/config"
	"github.com/Jeffawe/LedgerMind/internal/engine"
	"github.com/Jeffawe/LedgerMind/internal/executor"
	"github.com/Jeffawe/LedgerMind/internal/ledger"
	"github.com/Jeffawe/LedgerMind/internal/llm"
	"github.com/Jeffawe/LedgerMind/internal/logging"
	"github.com/Jeffawe/LedgerMind/internal/planner"
	"github.com/Jeffawe/LedgerMind/internal/profile"
	"github.com/Jeffawe/LedgerMind/internal/tools"
	"github.com/Jeffawe/LedgerMind/internal/tracing"
)

type rootFlags struct {
	configPath string
	model      string
	logFormat  string
	verbose    bool

	// provider replaces provider resolution when set.
	provider llm.Provider
	stdout   io.Writer
	stderr   io.Writer
}

func (rf *rootFlags) out() io.Writer {
	if rf.stdout != nil {
		return rf.stdout
	}
	return os.Stdout
}

func (rf *rootFlags) errOut() io.Writer {
	if rf.stderr != nil {
		return rf.stderr
	}
	return os.Stderr
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(rf *rootFlags) (config.Config, error) {
	cfg, err := config.Load(rf.configPath)
	if err != nil {
		return config.Config{}, exitError(exitInput, "failed to load config: %v", err)
	}
	if rf.model != "" {
		cfg.Model = rf.model
	}
	if rf.logFormat != "" {
		cfg.Log.Format = rf.logFormat
	}
	if rf.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, exitError(exitInput, "invalid config: %v", err)
	}
	return cfg, nil
}

// app holds every long-lived component built from one config.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	profiles *profile.Store
	store    *ledger.Store
	sources  *ledger.Aggregator
	registry *tools.Registry
	runs     cache.Store
	provider llm.Provider
	engine   *engine.Engine
	shutdown tracing.Shutdown
}

// buildApp wires the components. The model provider and engine are only
// built when withEngine is set.
func buildApp(rf *rootFlags, withEngine bool) (*app, error) {
	cfg, err := loadConfig(rf)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, rf.errOut())
	if err != nil {
		return nil, exitError(exitInput, "%v", err)
	}
	a := &app{cfg: cfg, logger: logger}

	a.profiles, err = profile.NewStore()
	if err != nil {
		return nil, exitError(exitInput, "failed to load profiles: %v", err)
	}
	if cfg.ProfilesDir != "" {
		if err := a.profiles.LoadDir(cfg.ProfilesDir); err != nil {
			return nil, exitError(exitInput, "failed to load profiles from %s: %v", cfg.ProfilesDir, err)
		}
	}

	a.store, err = ledger.Open(cfg.Ledger.DB, ledger.DefaultStoreName)
	if err != nil {
		return nil, exitError(exitStore, "failed to open ledger: %v", err)
	}
	a.sources = ledger.NewAggregator(a.store)
	for _, path := range cfg.Ledger.Files {
		f, err := ledger.LoadFile(path)
		if err != nil {
			a.Close()
			return nil, exitError(exitInput, "failed to load ledger file %s: %v", path, err)
		}
		a.sources.Add(ledger.NewStatic(path, f.Transactions))
		logger.Debug("loaded ledger file", "path", path, "transactions", len(f.Transactions), "hash", f.Hash)
	}

	a.registry = tools.NewRegistry()
	analysis.RegisterDefaults(a.registry, analysis.Deps{Ledger: a.sources, Profiles: a.profiles})

	if !withEngine {
		return a, nil
	}

	a.runs, err = openCache(cfg.Cache)
	if err != nil {
		a.Close()
		return nil, exitError(exitStore, "failed to open run cache: %v", err)
	}

	a.shutdown, err = tracing.Setup(context.Background(), tracing.Options{
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
		Writer:   rf.errOut(),
	})
	if err != nil {
		a.Close()
		return nil, exitError(exitInput, "failed to set up tracing: %v", err)
	}

	a.provider = rf.provider
	if a.provider == nil {
		a.provider, err = llm.ResolveProvider(cfg.ProviderModel(), cfg.Ollama.URL)
		if err != nil {
			a.Close()
			return nil, exitError(exitProvider, "model provider error: %v", err)
		}
	}
	logger.Debug("using provider", "provider", a.provider.Name())

	client := llm.NewClient(a.provider, llm.ClientOptions{
		Settings: llm.Settings{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		Timeout:           cfg.Timeout(),
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Logger:            logger,
	})

	opts := engine.Options{Logger: logger}
	if a.runs != nil {
		opts.Recorder = a.runs
	}
	a.engine = engine.New(
		planner.New(client, a.registry, planner.Options{
			PreferredTool: cfg.PreferredTool,
			Profiles:      a.profiles,
			Logger:        logger,
		}),
		executor.New(a.registry, executor.Options{LedgerID: cfg.Ledger.ID, Logger: logger}),
		composer.New(client, composer.Options{Profiles: a.profiles, Logger: logger}),
		opts,
	)
	return a, nil
}

func openCache(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheSQLite:
		db, err := cache.OpenSQLite(cfg.DB)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.CacheNone:
		return nil, nil
	default:
		mem, err := cache.NewMemory(cfg.Size)
		if err != nil {
			return nil, err
		}
		return mem, nil
	}
}

func (a *app) Close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("flushing traces", "error", err)
		}
		cancel()
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			a.logger.Warn("closing run cache", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing ledger", "error", err)
		}
	}
}

func writeOutput(rf *rootFlags, path, output string) error {
	if path == "" {
		_, err := fmt.Fprint(rf.out(), output)
		return err
	}
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
