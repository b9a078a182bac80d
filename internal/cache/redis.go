package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

const (
	universeKey    = "universe:members"
	lastSummaryKey = "sync:last_summary"
)

// RedisClient caches the symbol universe membership and the last run
// summary. The cache is an accelerator only; the database stays the source
// of truth.
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	cfg    *config.RedisConfig
}

// NewRedisClient creates a new Redis client.
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		cfg:    cfg,
	}, nil
}

// Close closes the Redis connection.
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health.
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SetUniverse caches the active symbol universe.
func (rc *RedisClient) SetUniverse(ctx context.Context, symbols []string, ttl time.Duration) error {
	data, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("failed to marshal universe: %w", err)
	}

	return rc.client.Set(ctx, universeKey, data, ttl).Err()
}

// GetUniverse returns the cached symbol universe, or nil on a cache miss.
func (rc *RedisClient) GetUniverse(ctx context.Context) ([]string, error) {
	data, err := rc.client.Get(ctx, universeKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get universe: %w", err)
	}

	var symbols []string
	if err := json.Unmarshal([]byte(data), &symbols); err != nil {
		return nil, fmt.Errorf("failed to unmarshal universe: %w", err)
	}

	return symbols, nil
}

// SetLastSummary stores the most recent run summary for the status API.
func (rc *RedisClient) SetLastSummary(ctx context.Context, stats *models.RunStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	return rc.client.Set(ctx, lastSummaryKey, data, 0).Err()
}

// GetLastSummary returns the most recent run summary, or nil when no pass
// has completed yet.
func (rc *RedisClient) GetLastSummary(ctx context.Context) (*models.RunStats, error) {
	data, err := rc.client.Get(ctx, lastSummaryKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}

	var stats models.RunStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}

	return &stats, nil
}
