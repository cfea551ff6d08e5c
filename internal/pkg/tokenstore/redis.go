package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis stores denylisted ids as keys that expire with the token.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps an existing client
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// ConnectRedis opens a client and checks it with PING
func ConnectRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", opts.Addr, err)
	}

	return NewRedis(client, opts.Prefix), nil
}

func (r *Redis) key(jti string) string {
	return r.prefix + jti
}

// Revoke runs SET key 1 EX ttl
func (r *Redis) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to denylist token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the key exists
func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.client.Get(ctx, r.key(jti)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}
}

// Close releases the client
func (r *Redis) Close() error {
	return r.client.Close()
}
