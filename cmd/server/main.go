package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"voyage/internal/ingest/handler"
	"voyage/internal/ingest/ratelimit"
	"voyage/internal/platform/config"
	"voyage/internal/platform/httpserver"
	"voyage/internal/platform/logger"
	"voyage/internal/platform/metrics"
	platformredis "voyage/internal/platform/redis"
	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/audit/store/cache"
	"voyage/pkg/platform/audit/store/memory"
	"voyage/pkg/platform/audit/store/postgres"
	"voyage/pkg/platform/httputil"
	"voyage/pkg/platform/identity"
	"voyage/pkg/platform/middleware/metadata"
)

// main wires the ingestion store, exposes the HTTP router, and keeps the
// server lifecycle small.
func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("audit server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, checks, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var limiter *ratelimit.Limiter
	if cfg.IngestRateLimit > 0 {
		limiter = ratelimit.New(cfg.IngestRateLimit, time.Minute)
	}

	router := newRouter(cfg, log, store, metrics.New(reg), reg, checks, limiter)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	if limiter != nil {
		g.Go(func() error {
			ratelimit.RunPruner(gctx, limiter, 5*time.Minute, log)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("starting audit server", "addr", cfg.Addr, "store", cfg.Store, "auth", cfg.RequireAuth(), "ingest_rate_limit", cfg.IngestRateLimit)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down audit server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type healthCheck func(context.Context) error

// openStore selects the backend and, when Redis is configured, fronts it with
// the count cache.
func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (audit.Store, map[string]healthCheck, func(), error) {
	var (
		store    audit.Store
		checks   = map[string]healthCheck{}
		closers  []func()
		closeAll = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	)

	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db, log); err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		checks["postgres"] = pinger(db)
		store = postgres.New(db)
	default:
		store = memory.NewInMemoryStore()
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	if rc != nil {
		closers = append(closers, func() { _ = rc.Close() })
		checks["redis"] = rc.Health
		store = cache.New(store, rc.Client, cfg.Redis.CountTTL, log)
	}

	return store, checks, closeAll, nil
}

func pinger(db *sql.DB) healthCheck {
	return db.PingContext
}

func newRouter(cfg config.Server, log *slog.Logger, store audit.Store, m *metrics.Metrics, reg *prometheus.Registry, checks map[string]healthCheck, limiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				log.WarnContext(r.Context(), "health check failed", "dependency", name, "error", err)
				status[name] = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httputil.WriteJSON(w, code, map[string]any{"status": http.StatusText(code), "dependencies": status})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	h := handler.New(store, log, m)
	var batchMW []func(http.Handler) http.Handler
	if limiter != nil {
		batchMW = append(batchMW, ratelimit.Middleware(limiter, log, m))
	}
	r.Group(func(r chi.Router) {
		if cfg.RequireAuth() {
			r.Use(identity.RequireBearer(identity.NewTokens(cfg.JWTSigningKey, cfg.JWTIssuer), log))
		}
		h.Register(r, batchMW...)
	})
	return r
}
