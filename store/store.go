// Package store defines the key/value persistence contract shared by the
// token lifecycle manager and the permission resolver. Values are opaque JSON
// blobs; backends never interpret them.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for keys with no stored value.
var ErrNotFound = errors.New("store: key not found")

// Logical keys. Everything the engine persists lives under one of these.
const (
	KeyCredential  = "credential"
	KeySessionUser = "session_user"

	permissionCachePrefix = "permission_cache_"
)

// PermissionCacheKey returns the storage key for a user's cached permission
// resolution.
func PermissionCacheKey(userID string) string {
	return permissionCachePrefix + userID
}

// KV is the durable key/value contract. Implementations must be safe for
// concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// RemoveAll removes every given key, continuing past individual failures and
// returning the first error encountered.
func RemoveAll(ctx context.Context, kv KV, keys ...string) error {
	var firstErr error
	for _, key := range keys {
		if err := kv.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
