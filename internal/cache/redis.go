package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"trackhub-backend/internal/models"
)

// ProjectMetaTTL bounds how stale a cached project summary may be.
// Authorization decisions never read from this cache.
const ProjectMetaTTL = 5 * time.Minute

type Client interface {
	GetProjectMeta(orgID, projectID string) (*models.ProjectMeta, error)
	SetProjectMeta(meta *models.ProjectMeta) error
	InvalidateProjectMeta(orgID, projectID string) error
	IncrWithTTL(key string, ttl time.Duration) (int64, error)
	SetLastSeen(integrationID string, tsMs int64, ttlSeconds int) error
	GetLastSeen(integrationID string) (int64, error)
	SetStatus(integrationID string, status string) error
	SubscribeExpired() (*redis.PubSub, error)
	Close() error
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisClient() (*RedisCache, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			opts.DB = db
		}
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{rdb: rdb}, nil
}

func projectMetaKey(orgID, projectID string) string {
	return fmt.Sprintf("thb:project:meta:%s:%s", orgID, projectID)
}

// GetProjectMeta returns the cached summary or (nil, nil) on a miss.
func (c *RedisCache) GetProjectMeta(orgID, projectID string) (*models.ProjectMeta, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.rdb.Get(ctx, projectMetaKey(orgID, projectID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var meta models.ProjectMeta
	if err := msgpack.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *RedisCache) SetProjectMeta(meta *models.ProjectMeta) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := msgpack.Marshal(meta)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, projectMetaKey(meta.OrgID, meta.ID), data, ProjectMetaTTL).Err()
}

func (c *RedisCache) InvalidateProjectMeta(orgID, projectID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.rdb.Del(ctx, projectMetaKey(orgID, projectID)).Err()
}

// IncrWithTTL increments a counter, setting the window TTL on first use.
func (c *RedisCache) IncrWithTTL(key string, ttl time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (c *RedisCache) SetLastSeen(integrationID string, tsMs int64, ttlSeconds int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf("thb:integration:last_seen:%s", integrationID)
	return c.rdb.Set(ctx, key, tsMs, time.Duration(ttlSeconds)*time.Second).Err()
}

func (c *RedisCache) GetLastSeen(integrationID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf("thb:integration:last_seen:%s", integrationID)
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (c *RedisCache) SetStatus(integrationID string, status string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf("thb:integration:status:%s", integrationID)
	return c.rdb.Set(ctx, key, status, 0).Err()
}

func (c *RedisCache) SubscribeExpired() (*redis.PubSub, error) {
	channel := fmt.Sprintf("__keyevent@%d__:expired", c.rdb.Options().DB)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return pubsub, nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
