package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/pkg/circuitbreaker"
	"github.com/apartment-estimator/backend/pkg/logger"
	"github.com/apartment-estimator/backend/pkg/retry"
)

const keyPrefix = "estimate:"

// Client caches estimates in Redis. It satisfies estimation.Cache.
type Client struct {
	client  redis.UniversalClient
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

func NewClient(ctx context.Context, host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	cfg := retry.DefaultConfig()
	cfg.Logger = logger.With(zap.String("component", "redis"))
	if _, err := retry.DoWithResult(ctx, cfg, func() (string, error) {
		return client.Ping(ctx).Result()
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("ttl", ttl))

	return newClient(client, ttl), nil
}

func newClient(client redis.UniversalClient, ttl time.Duration) *Client {
	return &Client{
		client: client,
		ttl:    ttl,
		breaker: circuitbreaker.New("redis", circuitbreaker.Config{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
			Logger:           logger.Log,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.breaker.Execute(func() error {
		return c.client.Ping(ctx).Err()
	})
}

func (c *Client) SetEstimates(ctx context.Context, key string, e *estimation.Estimates) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal estimates: %w", err)
	}

	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set estimate cache: %w", err)
	}

	logger.Debug("Estimates cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetEstimates(ctx context.Context, key string) (*estimation.Estimates, bool, error) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get estimate cache: %w", err)
	}
	if data == nil {
		return nil, false, nil
	}

	var e estimation.Estimates
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal estimates: %w", err)
	}

	logger.Debug("Estimate cache hit", zap.String("key", key))
	return &e, true, nil
}

// Invalidate drops every cached estimate, e.g. after new artifacts are
// deployed.
func (c *Client) Invalidate(ctx context.Context) (int, error) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Estimate cache invalidated", zap.Int("deleted", deleted))
	return deleted, nil
}
