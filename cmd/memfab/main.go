// Package main is the entry point for the memfab CLI tool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/memfab/memfab/internal/config"
	"github.com/memfab/memfab/internal/embedding"
	"github.com/memfab/memfab/internal/llm"
	"github.com/memfab/memfab/internal/memory"
	"github.com/memfab/memfab/internal/store"
	"github.com/memfab/memfab/internal/telemetry"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	configFile    string
	verbose       bool
	correlationID string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memfab",
		Short: "Context memory and retrieval engine",
		Long: `Memfab stores conversation messages with semantic embeddings,
assembles bounded context windows, compresses long histories under a
token budget, searches memory by similarity, and routes generation
requests to interchangeable model providers with comparable cost and
carbon estimates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", config.DefaultFile, "Path to config file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")
	root.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "Set explicit correlation ID")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newEstimateCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newCompressCmd())
	root.AddCommand(newSummaryCmd())
	root.AddCommand(newServeCmd())

	return root
}

// app bundles the wired engine components for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	store   store.Store
	manager *memory.Manager
	router  *llm.Router

	closeStore func() error
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	level := parseLevel(cfg.Log.Level)
	if verbose {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(os.Stderr, level)
	metrics := telemetry.NewMetrics()

	a := &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		router:     llm.NewRouter(),
		closeStore: func() error { return nil },
	}

	switch cfg.Store.Backend {
	case "memory":
		a.store = store.NewMemoryStore()
	case "sqlite":
		s, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		a.store = s
		a.closeStore = s.Close
	case "postgres":
		s, err := store.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		a.store = s
		a.closeStore = func() error { s.Close(); return nil }
	}

	var embedder embedding.Provider
	switch cfg.Embedding.Provider {
	case "local":
		dims := cfg.Embedding.Dimensions
		if dims <= 0 {
			dims = embedding.DefaultLocalDimensions
		}
		embedder = embedding.NewLocal(dims)
	case "openai":
		key := os.Getenv(cfg.Embedding.APIKeyEnv)
		embedder = embedding.NewOpenAIProvider(cfg.Embedding.BaseURL, key,
			cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}

	a.manager = memory.NewManager(a.store, embedder,
		memory.WithLogger(logger),
		memory.WithMetrics(metrics))

	for _, p := range cfg.Providers {
		if err := a.registerProvider(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// registerProvider builds and registers one adapter. An entry with no
// resolvable credential is registered anyway; estimates work offline and
// Generate reports the missing backend when called.
func (a *app) registerProvider(p config.ProviderConfig) error {
	key := p.APIKey()
	switch p.Provider {
	case "anthropic":
		if key == "" {
			a.router.Register(p.Name, llm.NewAnthropicAdapterWithClient(nil, p.Name))
			return nil
		}
		adapter, err := llm.NewAnthropicAdapter(key, p.Name)
		if err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
		a.router.Register(p.Name, adapter)
	case "openai":
		if key == "" {
			a.router.Register(p.Name, llm.NewOpenAIAdapterWithClient(nil, p.Name))
			return nil
		}
		adapter, err := llm.NewOpenAIAdapter(key, p.Name)
		if err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
		a.router.Register(p.Name, adapter)
	case "google":
		if key == "" {
			a.router.Register(p.Name, llm.NewGoogleAdapterWithClient(nil, p.Name))
			return nil
		}
		adapter, err := llm.NewGoogleAdapter(key, p.Name)
		if err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
		a.router.Register(p.Name, adapter)
	}
	return nil
}

func (a *app) close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// requestContext attaches the correlation ID from the global flag.
func requestContext() context.Context {
	return telemetry.WithCorrelationID(context.Background(), correlationID)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
