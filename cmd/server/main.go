package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	httpapi "eventreg/internal/http"
	"eventreg/internal/payment"
	"eventreg/internal/platform/config"
	"eventreg/internal/platform/httpserver"
	"eventreg/internal/platform/logger"
	"eventreg/internal/platform/metrics"
	"eventreg/internal/platform/postgres"
	"eventreg/internal/platform/redis"
	"eventreg/internal/ratelimit"
	ratelimitmetrics "eventreg/internal/ratelimit/metrics"
	ratelimitmw "eventreg/internal/ratelimit/middleware"
	"eventreg/internal/ratelimit/store/bucket"
	"eventreg/internal/registration"
	"eventreg/internal/registration/handler"
	regmetrics "eventreg/internal/registration/metrics"
	sessionstore "eventreg/internal/registration/store"
	"eventreg/internal/students"
	"eventreg/internal/students/client"
	studentmetrics "eventreg/internal/students/metrics"
	studentstore "eventreg/internal/students/store"
)

// sweepInterval is how often expired in-memory sessions are dropped.
const sweepInterval = time.Minute

// main wires dependencies, serves HTTP and shuts down on SIGINT/SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	health := map[string]httpapi.HealthCheck{}

	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		health["postgres"] = pool.Ping
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer func() { _ = rc.Close() }()
		health["redis"] = rc.Health
	}

	sessions := buildSessionStore(ctx, rc, log, g)
	limiter, err := buildRateLimiter(cfg, rc, log)
	if err != nil {
		return err
	}

	directory, err := buildDirectory(cfg, pool, log)
	if err != nil {
		return err
	}
	lookup, err := students.New(directory,
		students.WithLogger(log),
		students.WithMetrics(studentmetrics.New()),
	)
	if err != nil {
		return err
	}

	submitter, err := payment.NewWebhookClient(cfg.Workflow.URL, cfg.Workflow.Timeout)
	if err != nil {
		return err
	}

	auditor, closeAudit, err := buildAuditPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	svc, err := registration.New(sessions, lookup, submitter, cfg.Event,
		registration.WithLogger(log),
		registration.WithMetrics(regmetrics.New()),
		registration.WithAuditPublisher(auditor),
		registration.WithSessionTTL(cfg.Session.TTL),
	)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:  log,
		Metrics: metrics.New(),
		Health:  health,
		Routes:  []httpapi.Registrar{handler.New(svc, log, handler.WithRateLimiter(limiter))},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g.Go(func() error {
		log.Info("starting eventreg",
			"addr", cfg.Server.Addr,
			"event_tag", cfg.Event.Tag,
			"directory", directory.Name(),
			"audit_backend", cfg.Audit.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildSessionStore prefers Redis and falls back to process memory.
func buildSessionStore(ctx context.Context, rc *redis.Client, log *slog.Logger, g *errgroup.Group) registration.SessionStore {
	if rc != nil {
		return sessionstore.NewRedis(rc.Client)
	}

	log.Warn("REDIS_URL not set, keeping form sessions in memory")
	mem := sessionstore.NewInMemory()
	g.Go(func() error {
		mem.RunSweeper(ctx, sweepInterval)
		return nil
	})
	return mem
}

// buildRateLimiter shares request budgets through Redis when available.
func buildRateLimiter(cfg config.Config, rc *redis.Client, log *slog.Logger) (*ratelimitmw.Middleware, error) {
	var buckets ratelimit.BucketStore = bucket.NewInMemoryBucketStore()
	if rc != nil {
		buckets = bucket.NewRedisBucketStore(rc.Client)
	}
	opts := append(ratelimit.LimitsFromConfig(cfg.RateLimit),
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)
	limits, err := ratelimit.New(buckets, opts...)
	if err != nil {
		return nil, err
	}
	return ratelimitmw.New(limits, log, ratelimitmw.WithDisabled(cfg.RateLimit.Disabled)), nil
}

// buildDirectory picks the student record store: the SQL table when a
// database is configured, the REST endpoint when a URL is, demo data
// otherwise.
func buildDirectory(cfg config.Config, pool *pgxpool.Pool, log *slog.Logger) (students.Directory, error) {
	switch {
	case pool != nil:
		return studentstore.NewPostgres(pool, cfg.Directory.Table), nil
	case cfg.Directory.URL != "":
		return client.NewREST(cfg.Directory.URL, cfg.Directory.APIKey, cfg.Directory.Timeout,
			client.WithTable(cfg.Directory.Table))
	default:
		log.Warn("no student directory configured, serving demo students")
		return studentstore.NewInMemory(studentstore.DemoStudents(cfg.Event.Shift)...), nil
	}
}
