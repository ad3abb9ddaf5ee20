package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/config"
	"github.com/fyrsmithlabs/storefrontd/internal/embeddings"
	"github.com/fyrsmithlabs/storefrontd/internal/engine"
	"github.com/fyrsmithlabs/storefrontd/internal/httpserver"
	"github.com/fyrsmithlabs/storefrontd/internal/llm"
	"github.com/fyrsmithlabs/storefrontd/internal/logging"
	"github.com/fyrsmithlabs/storefrontd/internal/registry"
	"github.com/fyrsmithlabs/storefrontd/internal/retrieval"
	"github.com/fyrsmithlabs/storefrontd/internal/telegram"
	"github.com/fyrsmithlabs/storefrontd/internal/telemetry"
	"github.com/fyrsmithlabs/storefrontd/internal/translate"
	"github.com/fyrsmithlabs/storefrontd/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storefront daemon",
	Long: `Start the storefront daemon.

Loads every valid store under the stores root, builds its search index and
serves Telegram webhook updates until SIGINT or SIGTERM.

Examples:
  # Serve with defaults (stores under ./stores)
  storefrontd serve

  # Serve with a config file
  storefrontd serve --config /etc/storefrontd/config.yaml

  # Override single settings via environment
  STOREFRONTD_SERVER__PORT=9000 storefrontd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	return run(ctx)
}

// run starts the daemon and blocks until the context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Telemetry providers, then the logger (the logger bridges to OTEL)
//  3. Shared embedding provider (fastembed needs the ONNX runtime)
//  4. Translator, LLM client and Telegram sender
//  5. Registry scan of the stores root
//  6. Filesystem watcher (when enabled)
//  7. HTTP server
//
// Shutdown runs in reverse order under server.shutdown_timeout.
func run(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	tele, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tele)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	zlog := logger.Underlying()

	zlog.Info("starting storefrontd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("stores_root", cfg.Stores.Root),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	provider, err := initProvider(ctx, cfg, zlog)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	defer func() {
		_ = provider.Close()
	}()

	deps, err := initEngineDeps(cfg, provider, zlog)
	if err != nil {
		return err
	}

	reg := registry.New(cfg.Stores.Root, zlog)
	factory := engine.NewFactory(deps)

	loaded, err := reg.LoadAll(ctx, factory)
	if err != nil {
		return fmt.Errorf("failed to scan stores root: %w", err)
	}
	zlog.Info("stores loaded",
		zap.Int("count", loaded),
		zap.Strings("slugs", reg.Slugs()))

	var watcher *watch.Watcher
	if cfg.Stores.Watch.Enabled {
		watcher, err = watch.New(cfg.Stores.Root, reg, factory, cfg.Stores.Watch.Debounce.Duration(), zlog)
		if err != nil {
			return fmt.Errorf("failed to create store watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start store watcher: %w", err)
		}
	}

	srv, err := httpserver.NewServer(reg, factory, zlog, &httpserver.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	zlog.Info("serving",
		zap.String("webhook_prefix", "/webhook/{slug}"),
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	// Reverse order: stop intake first, then reloads, then engines.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http server shutdown failed", zap.Error(err))
	}
	if watcher != nil {
		watcher.Stop()
	}
	if err := reg.Close(shutdownCtx); err != nil {
		zlog.Warn("registry close failed", zap.Error(err))
	}
	if err := tele.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("telemetry shutdown failed", zap.Error(err))
	}

	zlog.Info("shutdown complete")
	return nil
}

// initTelemetry maps the daemon config onto the telemetry package config.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	tcfg := telemetry.NewDefaultConfig()
	tcfg.Enabled = cfg.Telemetry.Enabled
	tcfg.Endpoint = cfg.Telemetry.Endpoint
	tcfg.Protocol = cfg.Telemetry.Protocol
	tcfg.Insecure = cfg.Telemetry.Insecure
	tcfg.ServiceVersion = version
	tcfg.Sampling.Rate = cfg.Telemetry.SampleRate
	return telemetry.New(ctx, tcfg)
}

// initLogger maps the daemon config onto the logging package config.
func initLogger(cfg *config.Config, tele *telemetry.Telemetry) (*logging.Logger, error) {
	lcfg := logging.NewDefaultConfig()
	lcfg.Format = cfg.Logging.Format

	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	lcfg.Level = level

	// Downstream packages log through the bare zap logger, so there is no
	// wrapper frame to skip.
	lcfg.Caller.Skip = 0

	otelProvider := tele.LoggerProvider()
	lcfg.Output.OTEL = otelProvider != nil

	return logging.NewLogger(lcfg, otelProvider)
}

// initProvider builds the shared embedding provider. The service wrapper
// adds the per-call timeout and metrics.
func initProvider(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (embeddings.Provider, error) {
	if cfg.Embeddings.Provider == "fastembed" {
		if err := ensureONNXRuntime(ctx, zlog); err != nil {
			return nil, err
		}
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cfg.Embeddings.CacheDir,
		BatchSize: cfg.Embeddings.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	zlog.Info("embedding provider ready",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model),
		zap.Int("dimension", provider.Dimension()))

	return embeddings.NewService(provider, embeddings.ServiceConfig{
		Model:   cfg.Embeddings.Model,
		Timeout: cfg.Embeddings.Timeout.Duration(),
	}, zlog), nil
}

// initEngineDeps builds the process-wide collaborators shared by every
// store engine.
func initEngineDeps(cfg *config.Config, provider embeddings.Provider, zlog *zap.Logger) (engine.Deps, error) {
	var translator translate.Translator = translate.Noop{}
	if cfg.Translator.Enabled {
		t, err := translate.NewLLMTranslator(translate.Config{
			BaseURL: cfg.Translator.BaseURL,
			APIKey:  cfg.Translator.APIKey.Value(),
			Model:   cfg.Translator.Model,
			Timeout: cfg.Translator.Timeout.Duration(),
		})
		if err != nil {
			return engine.Deps{}, fmt.Errorf("failed to create translator: %w", err)
		}
		translator = t
	}

	client := llm.NewClient(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey.Value(),
		RPS:        cfg.LLM.RPS,
		Burst:      cfg.LLM.Burst,
		MaxRetries: cfg.LLM.MaxRetries,
		Timeout:    cfg.LLM.Timeout.Duration(),
	}, zlog)

	sender := telegram.NewClient(telegram.Config{
		APIBase: cfg.Telegram.APIBase,
		Timeout: cfg.Telegram.Timeout.Duration(),
	}, zlog)

	return engine.Deps{
		Provider:   provider,
		Translator: translator,
		LLM:        client,
		Selector:   llm.NewSelector(cfg.LLM.FastModel, cfg.LLM.HeavyModel),
		Sender:     sender,
		Retrieval: retrieval.Options{
			Threshold:   float32(cfg.Retrieval.ScoreThreshold),
			TopK:        cfg.Retrieval.TopK,
			MinQueryLen: cfg.Retrieval.MinQueryLength,
		},
		Logger: zlog,
	}, nil
}
