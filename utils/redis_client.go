package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/bettercampus/config"
)

// NewCache returns the listing cache for cfg: nil when caching is disabled, redis when
// reachable, otherwise an in-memory cache local to this process.
func NewCache(cfg config.AppConfig) Cache {
	if !cfg.CacheEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		Sugar.Warnw("redis unavailable; using in-memory cache", "addr", client.Options().Addr, "error", err)
		_ = client.Close()
		return NewMemoryCache()
	}
	return NewRedisCache(client)
}
