// Package app builds the store's services from configuration. Both the API
// binary and storectl share it.
package app

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/imrishuroy/go-ebook-store/internal/aws"
	"github.com/imrishuroy/go-ebook-store/internal/bkash"
	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/config"
	"github.com/imrishuroy/go-ebook-store/internal/database"
	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/metrics"
	"github.com/imrishuroy/go-ebook-store/internal/notify"
	"github.com/imrishuroy/go-ebook-store/internal/orders"
	"github.com/imrishuroy/go-ebook-store/internal/reviews"
)

// App holds the wired services and the resources they share.
type App struct {
	Pool    *pgxpool.Pool
	Gateway *bkash.Client
	Ledger  *idempotency.Store
	Catalog *catalog.Service
	Orders  *orders.Service
	Reviews *reviews.Service

	redis *redis.Client
}

// New connects to Postgres, Redis and AWS and wires every service.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	h := log.NewHelper(log.With(logger, "module", "app"))

	if cfg.IdempotencyTable == "" {
		return nil, fmt.Errorf("idempotency_table is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init aws clients: %w", err)
	}

	a := &App{Pool: pool}

	var cache bkash.TokenCache
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			h.Warnf("redis %s unreachable, caching gateway token in memory: %v", cfg.RedisAddr, err)
			_ = a.redis.Close()
			a.redis = nil
		}
	}
	if a.redis != nil {
		cache = bkash.NewRedisTokenCache(a.redis)
	} else {
		cache = bkash.NewMemoryTokenCache()
	}

	a.Gateway = bkash.NewClient(bkash.Config{
		BaseURL:     cfg.Bkash.BaseURL(),
		AppKey:      cfg.Bkash.AppKey,
		AppSecret:   cfg.Bkash.AppSecret,
		Username:    cfg.Bkash.Username,
		Password:    cfg.Bkash.Password,
		CallbackURL: cfg.WebURL + "/payment/callback",
		Timeout:     cfg.Bkash.Timeout,
		MaxRetries:  cfg.Bkash.MaxRetries,
	}, cache, logger)

	a.Ledger = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotificationsQueueURL != "" {
		notifier = notify.NewQueueNotifier(aws.NewPublisher(clients.SQS, cfg.NotificationsQueueURL), logger)
	} else {
		h.Warn("notifications_queue_url not set, customer emails disabled")
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.MetricsNamespace != "" {
		recorder = metrics.NewCloudWatchRecorder(clients.CloudWatch, cfg.MetricsNamespace, logger)
	}

	a.Catalog = catalog.NewService(catalog.NewStore(pool), logger)
	a.Orders = orders.NewService(
		orders.NewStore(pool),
		a.Catalog,
		a.Gateway,
		a.Ledger,
		notifier,
		recorder,
		orders.ServiceConfig{WebURL: cfg.WebURL, MediaRoot: cfg.MediaRoot},
		logger,
	)
	a.Reviews = reviews.NewService(reviews.NewStore(pool), a.Catalog, notifier, recorder, logger)
	return a, nil
}

// Close releases the pool and the Redis client.
func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.Pool.Close()
}
