package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"census/internal/citizens/handler"
	citizenmetrics "census/internal/citizens/metrics"
	"census/internal/citizens/service"
	"census/internal/platform/config"
	"census/internal/platform/httpserver"
	"census/internal/platform/logger"
	platformmetrics "census/internal/platform/metrics"
	"census/internal/platform/middleware"
	"census/internal/platform/telemetry"
	"census/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/citizens.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("census stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := telemetry.ShutdownWithTimeout(shutdownTracing, cfg.Server.ShutdownTimeout); err != nil {
			log.Warn("failed to flush spans", "error", err)
		}
	}()
	if cfg.Tracing.OTLPEndpoint != "" {
		log.Info("tracing enabled", "endpoint", cfg.Tracing.OTLPEndpoint, "sample_ratio", cfg.Tracing.SampleRatio)
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	auditPublisher, err := openAudit(ctx, cfg, st.db, log)
	if err != nil {
		return err
	}
	defer auditPublisher.Close()

	svc := service.New(st.store,
		service.WithLogger(log),
		service.WithMetrics(citizenmetrics.New()),
		service.WithAuditPublisher(auditPublisher),
		service.WithValidationWorkers(cfg.ValidationWorkers),
	)

	router := newRouter(cfg, log, svc, handler.NewHealth(st.store, cfg.Store, log))
	srv := httpserver.New(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting census", "addr", cfg.Server.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newRouter(cfg config.Config, log *slog.Logger, svc handler.Service, health http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recoverer(log))
	r.Use(middleware.Logger(log))
	r.Use(platformmetrics.New().Middleware)

	handler.New(svc, log, cfg.Server.MaxBodyBytes).Register(r)
	r.Method(http.MethodGet, "/health", health)
	r.Method(http.MethodGet, "/metrics", platformmetrics.Handler())
	return r
}
