package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mamadbah2/agroirrigate/internal/config"
)

const alertKeyPrefix = "agroirrigate:alert:"

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Cooldown gates dry-parcel alerts so an (owner, parcel) pair is alerted at most once per TTL.
type Cooldown struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCooldown wraps a redis client.
func NewCooldown(client *redis.Client, ttl time.Duration) *Cooldown {
	return &Cooldown{client: client, ttl: ttl}
}

// Acquire claims the alert slot. It returns false when the pair was alerted within the TTL.
func (c *Cooldown) Acquire(ctx context.Context, userID, parcelID int64) (bool, error) {
	ok, err := c.client.SetNX(ctx, alertKey(userID, parcelID), time.Now().Unix(), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire alert cooldown: %w", err)
	}
	return ok, nil
}

// Release frees a slot claimed by Acquire, used when delivery failed.
func (c *Cooldown) Release(ctx context.Context, userID, parcelID int64) error {
	if err := c.client.Del(ctx, alertKey(userID, parcelID)).Err(); err != nil {
		return fmt.Errorf("release alert cooldown: %w", err)
	}
	return nil
}

// Ping checks the redis connection.
func (c *Cooldown) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func alertKey(userID, parcelID int64) string {
	return fmt.Sprintf("%s%d:%d", alertKeyPrefix, userID, parcelID)
}
