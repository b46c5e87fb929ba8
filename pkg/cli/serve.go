package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/audit"
	"github.com/ekaya-inc/ekaya-audit/pkg/config"
	"github.com/ekaya-inc/ekaya-audit/pkg/database"
	"github.com/ekaya-inc/ekaya-audit/pkg/handlers"
	"github.com/ekaya-inc/ekaya-audit/pkg/middleware"
	"github.com/ekaya-inc/ekaya-audit/pkg/repositories"
	"github.com/ekaya-inc/ekaya-audit/pkg/services"
	"github.com/ekaya-inc/ekaya-audit/pkg/sinks"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit API over HTTP",
		Long: `Serve record, diff and merge endpoints over HTTP, with /health, /ping
and Prometheus /metrics.

The acting user is read from the configured actor header. History endpoints
are available when the postgres sink is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, rootOpts *RootOptions) error {
	cfg, logger, err := loadEnv(rootOpts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := audit.NewMetrics(registry)

	sink, err := sinks.Build(ctx, cfg, logger, metrics)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open sinks", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("Failed to close audit sinks", zap.Error(err))
		}
	}()

	var reader handlers.AuditReader
	if cfg.SinkEnabled(config.SinkPostgres) {
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		}, logger)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to connect to database", err)
		}
		defer db.Close()
		reader = repositories.NewAuditRepository(db)
	}

	svc := services.NewAuditService(sink, logger,
		services.WithPolicies(policiesFromConfig(cfg.Audit)),
		services.WithMetrics(metrics))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.BindAddr, cfg.Server.Port),
		Handler:           newHTTPHandler(cfg, svc, reader, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-audit API server",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Strings("sinks", cfg.Sinks.Enabled))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server failed", err)
		}
	case sig := <-shutdown:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// newHTTPHandler assembles the routes and middleware chain.
func newHTTPHandler(cfg *config.Config, svc services.AuditService, reader handlers.AuditReader, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAuditHandler(svc, reader, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return middleware.RequestLogger(logger)(middleware.Provenance(cfg.Server.ActorHeader)(mux))
}
