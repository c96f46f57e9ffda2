// Package redis provides a Redis-backed implementation of the broker interfaces.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mqueue-go/internal/broker"
	"mqueue-go/internal/config"
)

// Broker implements broker.Broker and broker.Blocker on a single Redis client.
// Callers that need blocking pops to stay off the ordinary command pool
// create two Brokers over two clients.
type Broker struct {
	client *redis.Client
}

// NewClient creates a Redis client with the given pool size and verifies the connection.
func NewClient(cfg *config.RedisConfig, poolSize int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// New wraps an existing client.
func New(client *redis.Client) *Broker {
	return &Broker{client: client}
}

// Push prepends values to the list at key with LPUSH.
func (b *Broker) Push(ctx context.Context, key string, values ...string) (int64, error) {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	n, err := b.client.LPush(ctx, key, args...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to push to %s: %w", key, err)
	}
	return n, nil
}

// Pop removes the oldest element with RPOP.
func (b *Broker) Pop(ctx context.Context, key string) (string, bool, error) {
	v, err := b.client.RPop(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to pop from %s: %w", key, err)
	}
	return v, true, nil
}

// BlockingPop waits for the oldest element with BRPOP.
func (b *Broker) BlockingPop(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	reply, err := b.client.BRPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to blocking pop from %s: %w", key, err)
	}
	// BRPOP replies with [key, value].
	if len(reply) != 2 {
		return "", false, fmt.Errorf("malformed BRPOP reply for %s: %d elements", key, len(reply))
	}
	return reply[1], true, nil
}

// Length returns LLEN of key.
func (b *Broker) Length(ctx context.Context, key string) (int64, error) {
	n, err := b.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get length of %s: %w", key, err)
	}
	return n, nil
}

// Range reads the whole list and returns it oldest first.
func (b *Broker) Range(ctx context.Context, key string) ([]string, error) {
	values, err := b.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range %s: %w", key, err)
	}
	// LRANGE walks head to tail, which is newest first.
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
	return values, nil
}

// AddMember runs SADD.
func (b *Broker) AddMember(ctx context.Context, key, member string) (bool, error) {
	n, err := b.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add %s to %s: %w", member, key, err)
	}
	return n == 1, nil
}

// RemoveMember runs SREM.
func (b *Broker) RemoveMember(ctx context.Context, key, member string) (bool, error) {
	n, err := b.client.SRem(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from %s: %w", member, key, err)
	}
	return n == 1, nil
}

// IsMember runs SISMEMBER.
func (b *Broker) IsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := b.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s in %s: %w", member, key, err)
	}
	return ok, nil
}

// Members runs SMEMBERS.
func (b *Broker) Members(ctx context.Context, key string) ([]string, error) {
	members, err := b.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list members of %s: %w", key, err)
	}
	return members, nil
}

// Delete runs DEL.
func (b *Broker) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Flush runs FLUSHDB on the configured database.
func (b *Broker) Flush(ctx context.Context) error {
	if err := b.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("failed to flush database: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (b *Broker) Close() error {
	return b.client.Close()
}

var (
	_ broker.Broker  = (*Broker)(nil)
	_ broker.Blocker = (*Broker)(nil)
)
