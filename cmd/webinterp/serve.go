package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/caffeineduck/webinterp/bridge"
	"github.com/caffeineduck/webinterp/internal/config"
	"github.com/caffeineduck/webinterp/internal/logging"
	"github.com/caffeineduck/webinterp/internal/server"
	"github.com/caffeineduck/webinterp/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP interpretation service",
		Long: `Start an HTTP server that interprets programs sent as base64url payloads.

Endpoints:
  GET /interpret?code=...   Interpret a program, returns {"Standard","Error","Meta"}
  GET /health               Health check
  GET /metrics              Prometheus metrics (configurable path)

When --config is given the file is watched: execution timeout, step limit and
log level are applied on change; other settings need a restart.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("listen", "", "Listen address (default from config, :8080)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr, _ = cmd.Flags().GetString("listen")
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	be, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()
	b := be.bridge(cfg)

	var metrics *telemetry.Metrics
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
		metricsPath = cfg.Metrics.Path
	}

	srv := server.New(b, metrics, logger, server.Config{
		AllowOrigins: cfg.CORS.AllowOrigins,
		MetricsPath:  metricsPath,
	})

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		r := newReloader(cfg, b, be, metrics, logger, cmd.Flags())
		watcher, err := config.NewWatcher(path, r.apply, logger, config.WithErrorHandler(r.failed))
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start config watcher: %w", err)
		}
		defer watcher.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("backend", b.Backend()).
			Dur("execution_timeout", b.ExecutionTimeout()).
			Msg("webinterp server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// reloader applies a reloaded configuration to the running service.
type reloader struct {
	mu      sync.Mutex
	current *config.Config
	bridge  *bridge.Bridge
	backend *backend
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	flags   *pflag.FlagSet
}

func newReloader(cfg *config.Config, b *bridge.Bridge, be *backend, metrics *telemetry.Metrics, logger zerolog.Logger, flags *pflag.FlagSet) *reloader {
	return &reloader{
		current: cfg,
		bridge:  b,
		backend: be,
		metrics: metrics,
		logger:  logger.With().Str("component", "reloader").Logger(),
		flags:   flags,
	}
}

// apply re-applies command line overrides, then swaps in the tunables.
// Settings that need a restart are reported and otherwise ignored.
func (r *reloader) apply(next *config.Config) error {
	if r.flags != nil {
		if err := applyFlags(r.flags, next); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if changed := r.current.RestartRequired(next); len(changed) > 0 {
		r.logger.Warn().Strs("settings", changed).Msg("changed settings take effect after restart")
	}

	t := next.Tunables()
	r.bridge.SetExecutionTimeout(t.ExecutionTimeout)
	r.backend.apply(t)
	logging.SetLevel(t.LogLevel)
	r.current = next

	if r.metrics != nil {
		r.metrics.RecordConfigReload("success")
	}
	r.logger.Info().
		Dur("execution_timeout", t.ExecutionTimeout).
		Uint64("max_steps", t.MaxSteps).
		Str("log_level", t.LogLevel).
		Msg("tunables applied")
	return nil
}

func (r *reloader) failed(error) {
	if r.metrics != nil {
		r.metrics.RecordConfigReload("failed")
	}
}
