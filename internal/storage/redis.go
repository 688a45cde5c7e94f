package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash that holds client state when no key is configured.
const DefaultRedisKey = "storefront:client_state"

// RedisStore keeps client state in a single Redis hash so that several
// processes can share one session.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, opts *redis.Options, key string) (*RedisStore, error) {
	if opts == nil || opts.Addr == "" {
		return nil, fmt.Errorf("%w: redis address cannot be empty", ErrInvalidInput)
	}
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

// Load returns every field of the state hash.
func (r *RedisStore) Load(ctx context.Context) (map[string][]byte, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load client state: %w", err)
	}

	values := make(map[string][]byte, len(fields))
	for field, value := range fields {
		values[field] = []byte(value)
	}
	return values, nil
}

// Save sets all fields with a single HSET.
func (r *RedisStore) Save(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(values)*2)
	for key, value := range values {
		if key == "" {
			return fmt.Errorf("%w: key cannot be empty", ErrInvalidInput)
		}
		args = append(args, key, value)
	}

	if err := r.client.HSet(ctx, r.key, args...).Err(); err != nil {
		return fmt.Errorf("failed to save client state: %w", err)
	}
	return nil
}

// Delete removes fields with a single HDEL.
func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := validateKeys(keys); err != nil {
		return err
	}

	if err := r.client.HDel(ctx, r.key, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete client state: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
