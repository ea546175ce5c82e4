package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/bpmonitor/internal/auditstore"
	"github.com/pitabwire/bpmonitor/internal/config"
	"github.com/pitabwire/bpmonitor/internal/history"
	"github.com/pitabwire/bpmonitor/internal/observability"
	"github.com/pitabwire/bpmonitor/internal/openapi"
	"github.com/pitabwire/bpmonitor/internal/transport"
)

// initTracing is replaced in tests.
var initTracing = observability.InitTracing

// tracingFlushTimeout bounds the exporter flush on exit.
const tracingFlushTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the history API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

// serve wires all dependencies together and runs the HTTP server until the
// context is cancelled or a termination signal arrives.
func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	// Step 1: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := initTracing(ctx, cfg.Observability.Tracing, "bpmonitor", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
		defer cancel()
		if err := tracingShutdown(flushCtx); err != nil {
			logger.Error("tracing shutdown error", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.InitMetrics(registry)

	// Step 2: Load the API document.
	apiDoc := openapi.NewIndex()
	if err := apiDoc.LoadDefault(ctx, cfg.Server.BasePath); err != nil {
		logger.Error("API document load failed", zap.Error(err))
		return err
	}

	// Step 3: Connect to the audit store.
	store, err := auditstore.Open(ctx, cfg.AuditStore, auditstore.WithMetrics(metrics))
	if err != nil {
		logger.Error("audit store connection failed",
			zap.String("driver", cfg.AuditStore.Driver),
			zap.String("dsn", observability.RedactDSN(cfg.AuditStore.ResolveDSN())),
			zap.Error(err),
		)
		return err
	}
	defer store.Close()

	// Step 4: Build the history service and HTTP router.
	svc := history.NewService(store, cfg.History, metrics, logger)

	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		History:  svc,
		Logger:   logger,
		Metrics:  metrics,
		Gatherer: registry,
		Readiness: observability.ReadinessChecks{
			AuditStore:   store,
			APIDocLoaded: apiDoc.Loaded,
		},
		APIDoc: apiDoc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 5: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("driver", store.Driver()),
		zap.String("trail_mode", store.TrailMode()),
		zap.String("version", version),
		zap.String("commit", commit),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
