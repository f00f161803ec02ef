// Package app assembles the invoice API from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/coreb-invoice/internal/config"
	"github.com/noah-isme/coreb-invoice/internal/db"
	"github.com/noah-isme/coreb-invoice/internal/health"
	"github.com/noah-isme/coreb-invoice/internal/obs"
	"github.com/noah-isme/coreb-invoice/internal/ratelimit"
)

const applicationName = "coreb-invoice"

// Dependencies enumerates the shared clients the HTTP layer is built from.
type Dependencies struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Validator *validator.Validate
	Limiter   *limiter.Limiter
	Logger    zerolog.Logger
}

// NewDependencies connects to PostgreSQL and, when configured, Redis.
func NewDependencies(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	if cfg.DBAutoMigrate {
		if err := db.Up(cfg.DatabaseURL, logger); err != nil {
			return nil, err
		}
	}

	pool, err := NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	deps := &Dependencies{DB: pool, Validator: validator.New(), Logger: logger}

	if cfg.HasRedis() {
		rdb, err := NewRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled, logger)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Redis = rdb
	}

	deps.Limiter, err = ratelimit.New(cfg.RateLimit, deps.Redis)
	if err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

// NewPool opens a traced pgx pool and checks connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis opens an instrumented Redis client and checks connectivity.
func NewRedis(ctx context.Context, redisURL string, withMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Close releases every open client.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// Checker adapts the dependencies to readiness probes.
func (d *Dependencies) Checker() health.Checker {
	return readinessChecker{db: d.DB, redis: d.Redis}
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

// PingCache skips when Redis is not configured; snapshots then live in memory.
func (c readinessChecker) PingCache(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return health.ErrSkipped
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
