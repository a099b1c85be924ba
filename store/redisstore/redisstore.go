// Package redisstore is a shared-cache KV backend for deployments that run
// the engine server-side behind several replicas. Keys are namespaced and can
// carry a TTL so abandoned session material ages out on its own.
package redisstore

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jking1031/ZZIOT2.0-sub002/store"
)

const defaultNamespace = "session:"

type RedisStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

var _ store.KV = (*RedisStore)(nil)

type Option func(*RedisStore)

// WithNamespace replaces the default "session:" key prefix.
func WithNamespace(namespace string) Option {
	return func(r *RedisStore) {
		r.namespace = namespace
	}
}

// WithTTL makes every written key expire after d. Zero means no expiry.
func WithTTL(d time.Duration) Option {
	return func(r *RedisStore) {
		r.ttl = d
	}
}

func New(client *redis.Client, options ...Option) (*RedisStore, error) {
	if client == nil {
		return nil, pkgerrors.New("[redisstore.New] client is required")
	}
	r := &RedisStore{client: client, namespace: defaultNamespace}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

func (r *RedisStore) key(key string) string {
	return r.namespace + key
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[RedisStore.Get] get")
	}
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return pkgerrors.Wrap(err, "[RedisStore.Set] set")
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return pkgerrors.Wrap(err, "[RedisStore.Remove] del")
	}
	return nil
}
