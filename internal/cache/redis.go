// Package cache holds the shared Redis client and the cache-aside helpers
// for user profiles.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"socialhub/internal/middleware"
	"socialhub/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// errorCounter feeds socialhub_redis_error_rate_total. redis.Nil is a cache
// miss, not an error.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countError(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countError("pipeline", err)
		return err
	}
}

func countError(op string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(op).Inc()
	}
}

// ParseOptions accepts a redis:// or rediss:// URL or a bare host:port.
func ParseOptions(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		return redis.ParseURL(addr)
	}
	if addr == "" {
		return nil, errors.New("empty redis address")
	}
	return &redis.Options{Addr: addr}, nil
}

// InitRedis connects to addr and installs the package client. When Redis is
// unreachable the client stays nil; profile caching, rate limits, token
// revocation and realtime delivery then become no-ops.
func InitRedis(addr string) *redis.Client {
	client = nil
	opts, err := ParseOptions(addr)
	if err != nil {
		middleware.Logger.Warn("Invalid REDIS_URL, continuing without Redis", "error", err)
		return nil
	}

	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("Redis unavailable, continuing without it", "addr", opts.Addr, "error", err)
		_ = c.Close()
		return nil
	}

	middleware.Logger.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	client = c
	return client
}

// SetClient replaces the package client; tests pass a miniredis client.
func SetClient(c *redis.Client) {
	client = c
}

func GetClient() *redis.Client {
	return client
}
