// Package redisdb resolves the Redis connection shared by the job event bus,
// the asynq queue and the metrics collector.
package redisdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/visiblee-backend/internal/config"
)

// Options prefers cfg.URL and falls back to the discrete address fields.
func Options(cfg config.RedisConfig) (*goredis.Options, error) {
	if u := strings.TrimSpace(cfg.URL); u != "" {
		opt, err := goredis.ParseURL(u)
		if err != nil {
			return nil, fmt.Errorf("redisdb: parse url: %w", err)
		}
		return opt, nil
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redisdb: neither redis.url nor redis.addr is set")
	}
	return &goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	}, nil
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	opt, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
