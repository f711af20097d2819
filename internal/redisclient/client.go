package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"demand-forecast-service/internal/models"
)

// Client is a read-through cache for prediction results. Keys carry the
// artifact run ID, so a new training run invalidates all cached entries
// without explicit deletion.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// PredictionKey builds the cache key for one query against one artifact run.
func PredictionKey(runID string, q models.PredictionQuery) string {
	return fmt.Sprintf("forecast:%s:%d:%d:%s:%s", runID, q.ItemID, q.PlaceID, q.Date, q.Period)
}

// GetPrediction retrieves a cached prediction result.
func (c *Client) GetPrediction(ctx context.Context, key string) (*models.PredictionResult, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("prediction cache get failed: %w", err)
	}

	var result models.PredictionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("prediction cache decode failed: %w", err)
	}
	return &result, true, nil
}

// SetPrediction stores a prediction result with a TTL.
func (c *Client) SetPrediction(ctx context.Context, key string, result *models.PredictionResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("prediction cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}
