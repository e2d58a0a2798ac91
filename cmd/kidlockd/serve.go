package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/kidlock/internal/host/bridge"
	logpkg "github.com/kailas-cloud/kidlock/internal/logger"
	"github.com/kailas-cloud/kidlock/internal/metrics"
	"github.com/kailas-cloud/kidlock/internal/repository/state"
	chiTransport "github.com/kailas-cloud/kidlock/internal/transport/chi"
	enforceuc "github.com/kailas-cloud/kidlock/internal/usecase/enforce"
	healthuc "github.com/kailas-cloud/kidlock/internal/usecase/health"
	"github.com/kailas-cloud/kidlock/internal/version"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	cfg, logger := a.cfg, a.logger
	logger.Info("Starting kidlockd",
		zap.String("version", version.String()),
		zap.String("env", a.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register budget metrics explicitly (no init())
	metrics.RegisterBudgetMetrics()

	monitor := enforceuc.New(enforceuc.Config{
		SelfPackage:    cfg.Enforcement.SelfPackage,
		TickInterval:   cfg.Enforcement.TickInterval(),
		Debounce:       cfg.Enforcement.Debounce(),
		ExemptPrefixes: cfg.Enforcement.ExemptPrefixes,
		ExemptPackages: cfg.Enforcement.ExemptPackages,
	}, a.engine, a.repo, a.host, a.clock, logger, a.host.LiveProbe, a.host.RecentUsageProbe)
	healthSvc := healthuc.New(a.store, a.host)

	server := chiTransport.NewServer(a.admin, healthSvc, a.host, monitor, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r, cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		// Request contexts end with ctx so open command streams close on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		notifyEvictions(gctx, monitor.Evictions(), a.host, logger)
		return nil
	})
	g.Go(func() error {
		launchOnConnect(gctx, a.repo, a.host, logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// notifyEvictions tells the child why the application closed.
func notifyEvictions(ctx context.Context, evictions <-chan enforceuc.Eviction, host *bridge.Bridge, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-evictions:
			if err := host.NotifyLimitReached(ctx, ev.Package); err != nil {
				logger.Warn("Limit notification not delivered",
					zap.String("package", ev.Package),
					zap.Error(err),
				)
			}
		}
	}
}

// launchOnConnect opens the child screen once the agent first connects, if autostart is on.
func launchOnConnect(ctx context.Context, repo *state.Repo, host *bridge.Bridge, logger *zap.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !host.Connected() {
				continue
			}
			enabled, err := repo.AutostartEnabled(ctx)
			if err != nil {
				logger.Warn("Autostart flag unreadable, skipping launch", zap.Error(err))
				return
			}
			if enabled {
				if err := host.LaunchMain(ctx); err != nil {
					logger.Warn("Autostart launch failed", zap.Error(err))
				}
			}
			return
		}
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
