// Package cache keeps catalog, comment and profile reads in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mainq/internal/middleware"
	"mainq/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// client is nil when Redis is unavailable; every helper then falls through.
var client *redis.Client

// errorCounter counts failed Redis commands by name. A cache miss is not a failure.
type errorCounter struct{}

func failed(err error) bool {
	return err != nil && !errors.Is(err, redis.Nil)
}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if failed(err) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if failed(err) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

func parseOptions(addr string) (*redis.Options, error) {
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

// NewClient builds a client for addr, which is either host:port or a
// redis:// URL. No connection is made.
func NewClient(addr string) (*redis.Client, error) {
	opts, err := parseOptions(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})
	return c, nil
}

// InitRedis connects the package client. On any failure the server keeps
// running uncached and without live pushes.
func InitRedis(addr string) {
	client = nil

	c, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("redis disabled", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("redis unreachable, running without cache", "addr", c.Options().Addr, "error", err)
		_ = c.Close()
		return
	}

	middleware.Logger.Info("redis connected", "addr", c.Options().Addr)
	client = c
}

// GetClient returns the package client, or nil when Redis is off.
func GetClient() *redis.Client {
	return client
}

// SetClient swaps the package client.
func SetClient(c *redis.Client) {
	client = c
}
