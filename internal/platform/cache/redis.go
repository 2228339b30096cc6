package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ogurasousui/codex-http-clean-arch/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// New は Redis クライアントを生成し疎通確認を行います。
func New(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", cfg.Addr, err)
	}

	return client, nil
}
