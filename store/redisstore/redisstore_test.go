package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jking1031/ZZIOT2.0-sub002/store"
	"github.com/jking1031/ZZIOT2.0-sub002/store/redisstore"
)

func openTestStore(t *testing.T, options ...redisstore.Option) (*redisstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	kv, err := redisstore.New(client, options...)
	require.NoError(t, err)
	return kv, mini
}

func TestSetGetRemove(t *testing.T) {
	ctx := context.Background()
	kv, _ := openTestStore(t)

	_, err := kv.Get(ctx, store.KeyCredential)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Set(ctx, store.KeyCredential, []byte(`{"access_token":"at"}`)))
	value, err := kv.Get(ctx, store.KeyCredential)
	require.NoError(t, err)
	require.JSONEq(t, `{"access_token":"at"}`, string(value))

	require.NoError(t, kv.Remove(ctx, store.KeyCredential))
	_, err = kv.Get(ctx, store.KeyCredential)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestNamespacing(t *testing.T) {
	ctx := context.Background()
	kv, mini := openTestStore(t, redisstore.WithNamespace("plant:"))

	require.NoError(t, kv.Set(ctx, store.KeyCredential, []byte("v")))
	require.True(t, mini.Exists("plant:credential"))
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	kv, mini := openTestStore(t, redisstore.WithTTL(time.Minute))

	require.NoError(t, kv.Set(ctx, store.KeySessionUser, []byte("v")))
	mini.FastForward(2 * time.Minute)

	_, err := kv.Get(ctx, store.KeySessionUser)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewRequiresClient(t *testing.T) {
	_, err := redisstore.New(nil)
	require.Error(t, err)
}
