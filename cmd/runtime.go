// Package cmd implements the meetflow subcommands: serve, worker, and
// migrate. Each command builds its dependency graph from configuration and
// runs until interrupted.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/meetflow/config"
	"github.com/otherjamesbrown/meetflow/pkg/db"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/queues"
	"github.com/otherjamesbrown/meetflow/pkg/store"
)

const (
	dbConnectAttempts   = 5
	dbConnectRetryDelay = 2 * time.Second
)

// runtime holds the shared process dependencies: config, logger, database
// pool, redis client, queue, and store.
type runtime struct {
	cfg    *config.Config
	logger logging.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	queue  *queues.RedisQueue
	store  store.Store
}

// newRuntime loads configuration and connects the shared dependencies.
func newRuntime(ctx context.Context, cfgPath, serviceName string) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(&logging.Config{
		Level:       logging.Level(cfg.Logging.Level),
		ServiceName: serviceName,
		Environment: cfg.Server.Environment,
		JSONFormat:  cfg.Logging.JSON,
	})

	pool, err := db.ConnectWithRetry(ctx, cfg.Database, dbConnectAttempts, dbConnectRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	queueCfg := queues.DefaultQueueConfig()
	if cfg.Pipeline.VisibilityTimeout > 0 {
		queueCfg.VisibilityTimeout = cfg.Pipeline.VisibilityTimeout
	}
	queueCfg.MaxRetries = cfg.Pipeline.MaxRetries

	return &runtime{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		rdb:    rdb,
		queue:  queues.NewRedisQueue(rdb, queueCfg),
		store:  store.NewRepository(pool, logger),
	}, nil
}

// Close releases the runtime's connections.
func (r *runtime) Close() {
	if r.queue != nil {
		r.queue.Close()
	}
	if r.rdb != nil {
		r.rdb.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}
