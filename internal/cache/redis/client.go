package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ==================== Credential cache ====================
//
// Credentials are cached without TTL; SQLite stays the source of truth and
// the cache is overwritten wholesale alongside it.

func (c *Client) SetCredential(ctx context.Context, cred *models.SessionCredential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	if err := c.client.Set(ctx, credentialKey(cred.Platform), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to cache credential: %w", err)
	}

	logger.Debug("Credential cached", zap.String("platform", string(cred.Platform)))
	return nil
}

func (c *Client) GetCredential(ctx context.Context, platform models.Platform) (*models.SessionCredential, bool, error) {
	data, err := c.client.Get(ctx, credentialKey(platform)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached credential: %w", err)
	}

	var cred models.SessionCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	logger.Debug("Credential cache hit", zap.String("platform", string(platform)))
	return &cred, true, nil
}

func credentialKey(platform models.Platform) string {
	return fmt.Sprintf("credential:%s", platform)
}

// ==================== Score cache ====================

func (c *Client) SetScores(ctx context.Context, key string, scores interface{}, ttl time.Duration) error {
	data, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	if err := c.client.Set(ctx, fmt.Sprintf("scores:%s", key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache scores: %w", err)
	}
	return nil
}

func (c *Client) GetScores(ctx context.Context, key string, scores interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("scores:%s", key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cached scores: %w", err)
	}

	if err := json.Unmarshal(data, scores); err != nil {
		return false, fmt.Errorf("failed to unmarshal scores: %w", err)
	}

	logger.Debug("Score cache hit", zap.String("key", key))
	return true, nil
}

// InvalidateScores drops all cached score entries, called after new
// responses complete.
func (c *Client) InvalidateScores(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "scores:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}
	return nil
}
