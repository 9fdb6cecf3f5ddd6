package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config хранит конфигурацию подключения к Redis.
// Если задан URL, он имеет приоритет над Addr/Password/DB.
type Config struct {
	URL      string // "redis://:password@host:6379/0"
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient создает клиента Redis и проверяет соединение
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	} else {
		if cfg.Addr == "" {
			return nil, fmt.Errorf("REDIS_URL or REDIS_ADDR configuration is required")
		}
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}
