package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "kelly:session:"

// RedisStore keeps each session as a Redis list of JSON-encoded turns.
// Every append refreshes the session TTL; idle sessions expire.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed conversation store.
func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), ttl)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func metaKey(id string) string  { return keyPrefix + id + ":meta" }
func turnsKey(id string) string { return keyPrefix + id + ":turns" }

// Create registers a new session. Redis cannot hold an empty list, so the
// session's existence is tracked by a separate meta key.
func (r *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	created := time.Now().UTC().Format(time.RFC3339Nano)
	if err := r.client.Set(ctx, metaKey(id), created, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis_store: create: %w", err)
	}
	return id, nil
}

func (r *RedisStore) History(ctx context.Context, sessionID string) (History, error) {
	if err := r.exists(ctx, sessionID); err != nil {
		return nil, err
	}

	vals, err := r.client.LRange(ctx, turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_store: lrange: %w", err)
	}

	h := make(History, 0, len(vals))
	for i, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("redis_store: unmarshal turn %d: %w", i, err)
		}
		h = append(h, t)
	}
	return h, nil
}

func (r *RedisStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if err := History(turns).Validate(); err != nil {
		return err
	}
	if err := r.exists(ctx, sessionID); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	vals := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("redis_store: marshal: %w", err)
		}
		vals = append(vals, string(data))
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, turnsKey(sessionID), vals...)
		pipe.Expire(ctx, turnsKey(sessionID), r.ttl)
		pipe.Expire(ctx, metaKey(sessionID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis_store: append: %w", err)
	}
	return nil
}

func (r *RedisStore) exists(ctx context.Context, sessionID string) error {
	n, err := r.client.Exists(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("redis_store: exists: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ Store = (*RedisStore)(nil)
