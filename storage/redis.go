package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a response store backed by redis, for deployments where several
// processes must share stored responses. Entry expiry is delegated to redis
// through the configured TTL.
type Redis struct {
	client    *redis.Client
	expiry    time.Duration
	keyPrefix string
}

// RedisOption is the signature for functional options for the redis store.
type RedisOption func(*Redis)

// WithKeyPrefix overrides the prefix prepended to every stored key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.keyPrefix = prefix
	}
}

// NewRedis creates a redis-backed response store. An expiry of zero stores
// entries without a TTL.
func NewRedis(client *redis.Client, expiry time.Duration, opts ...RedisOption) *Redis {
	s := &Redis{
		client:    client,
		expiry:    expiry,
		keyPrefix: "idemkey:",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *Redis) Retrieve(ctx context.Context, key string) (*Snapshot, bool, error) {
	res, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get the key %q from redis: %w", key, err)
	}
	snap, err := bytesToSnapshot(res)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func (s *Redis) Store(ctx context.Context, key string, snap *Snapshot) error {
	b, err := snapshotToBytes(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, b, s.expiry).Err(); err != nil {
		return fmt.Errorf("failed to set the key %q in redis: %w", key, err)
	}
	return nil
}
