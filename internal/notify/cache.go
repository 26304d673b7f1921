package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/betagouv/zacharie-sub006/config"
	"github.com/betagouv/zacharie-sub006/internal/model"
)

// GuardCache fronts the notification log for fast idempotency checks. Cache
// errors are tolerated; the log remains the source of truth.
type GuardCache interface {
	Seen(ctx context.Context, subjectID, kind string, channel model.NotificationChannel) (bool, error)
	Mark(ctx context.Context, subjectID, kind string, channel model.NotificationChannel) error
}

// RedisGuardCache implements GuardCache using Redis
type RedisGuardCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisGuardCache creates a new Redis guard cache
func NewRedisGuardCache(cfg *config.RedisConfig) (GuardCache, error) {
	if !cfg.Enabled {
		return &RedisGuardCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisGuardCache{
		client:  client,
		enabled: true,
		ttl:     24 * time.Hour,
	}, nil
}

// Prefix keys to avoid collisions
func guardKey(subjectID, kind string, channel model.NotificationChannel) string {
	return fmt.Sprintf("notification_guard:%s:%s:%s", subjectID, kind, channel)
}

// Seen reports whether the triple was already marked
func (c *RedisGuardCache) Seen(ctx context.Context, subjectID, kind string, channel model.NotificationChannel) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	n, err := c.client.Exists(ctx, guardKey(subjectID, kind, channel)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the triple
func (c *RedisGuardCache) Mark(ctx context.Context, subjectID, kind string, channel model.NotificationChannel) error {
	if !c.enabled {
		return nil
	}
	return c.client.Set(ctx, guardKey(subjectID, kind, channel), "1", c.ttl).Err()
}
