package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/yourusername/account-api/internal/account"
	"github.com/yourusername/account-api/internal/config"
	"github.com/yourusername/account-api/internal/database"
	"github.com/yourusername/account-api/internal/jobs"
	"github.com/yourusername/account-api/internal/metrics"
	"github.com/yourusername/account-api/internal/tokens"
	"github.com/yourusername/account-api/internal/users"
)

// deps は設定から組み立てたストアと周辺コンポーネントです。
type deps struct {
	users   users.Store
	tokens  tokens.Store
	purger  account.SessionPurger
	metrics *metrics.Metrics

	closers []func() error
}

func buildDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (d *deps, err error) {
	d = &deps{}
	defer func() {
		// 途中で失敗したら作成済みのリソースを閉じる
		if err != nil {
			d.Close(logger)
		}
	}()

	hasher := users.NewBcryptHasher(cfg.BcryptCost)

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		p, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return d, err
		}
		d.closers = append(d.closers, func() error { p.Close(); return nil })
		pool = p
	}

	switch cfg.UserStore {
	case config.StorePostgres:
		d.users = users.NewPostgresStore(pool, hasher)
	default:
		d.users = users.NewMemoryStore(hasher)
	}

	switch cfg.TokenStore {
	case config.StorePostgres:
		store := tokens.NewPostgresStore(pool, cfg.SessionMaxAge())
		// sessions テーブルの期限切れ行は自然には消えないため定期的に掃除する
		sweeper := jobs.NewSweeper(store, jobs.DefaultSweepInterval, logger)
		sweeper.Start()
		d.closers = append(d.closers, sweeper.Close)
		d.tokens = store
	case config.StoreRedis:
		rdb, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return d, err
		}
		d.closers = append(d.closers, rdb.Close)
		d.tokens = tokens.NewRedisStore(rdb, cfg.SessionMaxAge())
	default:
		d.tokens = tokens.NewMemoryStore(cfg.SessionMaxAge())
	}

	if cfg.QueueRedisURL != "" {
		manager, err := jobs.NewManager(cfg.QueueRedisURL, d.tokens, logger)
		if err != nil {
			return d, err
		}
		manager.StartWorkers()
		d.closers = append(d.closers, manager.Shutdown)
		d.purger = manager
	} else {
		d.purger = jobs.NewInlinePurger(d.tokens)
	}

	if cfg.MetricsEnabled {
		d.metrics = metrics.New()
	}

	return d, nil
}

// Close は作成とは逆順にリソースを閉じます。
func (d *deps) Close(logger *slog.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Warn("failed to close resource", "error", err)
		}
	}
	d.closers = nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return rdb, nil
}
