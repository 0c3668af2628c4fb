package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "surat:notifications:"

// RedisInbox keeps notifications in a Redis list per owner, so they survive
// restarts and are shared between console processes. Redis expires the
// whole list TTL after the latest push.
type RedisInbox struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisInbox(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisInbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisInbox{client: client, ttl: ttl, logger: logger}
}

// NewRedisClient opens a client and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func key(owner string) string {
	return keyPrefix + owner
}

func (r *RedisInbox) Push(ctx context.Context, owner string, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key(owner), b)
	if r.ttl > 0 {
		pipe.Expire(ctx, key(owner), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Drain reads and deletes the owner's list in one transaction.
func (r *RedisInbox) Drain(ctx context.Context, owner string) ([]Notification, error) {
	var lrange *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key(owner), 0, -1)
		pipe.Del(ctx, key(owner))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain notifications: %w", err)
	}

	raw := lrange.Val()
	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			r.logger.Warn("dropping malformed notification", zap.String("owner", owner), zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *RedisInbox) Dismiss(ctx context.Context, owner, id string) (bool, error) {
	raw, err := r.client.LRange(ctx, key(owner), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("list notifications: %w", err)
	}

	for _, item := range raw {
		var n Notification
		if json.Unmarshal([]byte(item), &n) != nil || n.ID != id {
			continue
		}
		removed, err := r.client.LRem(ctx, key(owner), 1, item).Result()
		if err != nil {
			return false, fmt.Errorf("dismiss notification: %w", err)
		}
		return removed > 0, nil
	}
	return false, nil
}
