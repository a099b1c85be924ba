package permission

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/apperrors"
	"github.com/jking1031/ZZIOT2.0-sub002/internal/metrics"
	"github.com/jking1031/ZZIOT2.0-sub002/profile"
	"github.com/jking1031/ZZIOT2.0-sub002/store"
)

// Fetcher supplies a department's grant list. Each department is an
// independent network call; the resolver tolerates individual failures.
type Fetcher interface {
	FetchDepartmentGrants(ctx context.Context, departmentID string) ([]Grant, error)
}

// CacheEntry is the persisted form of one user's resolved permissions. It is
// valid while FetchedAt is within TTL and the department snapshot matches.
type CacheEntry struct {
	UserID             string      `json:"user_id"`
	Set                ResolvedSet `json:"resolved_set"`
	DepartmentSnapshot string      `json:"department_snapshot"`
	FetchedAt          time.Time   `json:"fetched_at"`
}

// Resolver merges per-department grants into one ResolvedSet with TTL
// caching. The in-memory cache is authoritative; entries are mirrored to the
// store so a resolution survives restart within its TTL.
type Resolver struct {
	fetcher Fetcher
	kv      store.KV
	ttl     time.Duration
	nowFunc func() time.Time
	logger  zerolog.Logger

	mu    sync.Mutex
	cache map[string]*CacheEntry
}

type ResolverOption func(*Resolver)

// WithTTL overrides the default 30-minute cache lifetime.
func WithTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.ttl = ttl
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.nowFunc = now
	}
}

// WithLogger sets the logger for fetch warnings.
func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver. kv may be nil for purely in-memory caching.
func NewResolver(fetcher Fetcher, kv store.KV, options ...ResolverOption) (*Resolver, error) {
	if fetcher == nil {
		return nil, errors.New("[NewResolver] fetcher is required")
	}
	r := &Resolver{
		fetcher: fetcher,
		kv:      kv,
		ttl:     30 * time.Minute,
		nowFunc: time.Now,
		logger:  zerolog.Nop(),
		cache:   make(map[string]*CacheEntry),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Resolve returns the user's authoritative permission set.
//
// A cached resolution is reused while within TTL and while the department
// memberships are unchanged, unless forceRefresh is set. Per-department fetch
// failures degrade the result instead of aborting it: the user keeps the
// grants from departments that answered. When every department fails the
// guest set is returned together with ErrPermissionFetch; the set stays
// usable and the error is advisory.
func (r *Resolver) Resolve(ctx context.Context, userID string, departments []profile.DepartmentRef, forceRefresh bool) (ResolvedSet, error) {
	snapshot := departmentSnapshot(departments)

	if !forceRefresh {
		if entry := r.cachedEntry(ctx, userID); entry != nil && r.entryValid(entry, snapshot) {
			metrics.PermissionCacheHits.Inc()
			return entry.Set, nil
		}
	}
	metrics.PermissionCacheMisses.Inc()

	if len(departments) == 0 {
		set := GuestSet()
		r.storeEntry(ctx, &CacheEntry{UserID: userID, Set: set, DepartmentSnapshot: snapshot, FetchedAt: r.nowFunc()})
		return set, nil
	}

	var grantLists [][]Grant
	failed := 0
	for _, dept := range departments {
		grants, err := r.fetcher.FetchDepartmentGrants(ctx, dept.DepartmentID)
		if err != nil {
			failed++
			metrics.DepartmentFetchFailures.Inc()
			r.logger.Warn().
				Str("department_id", dept.DepartmentID).
				Str("department_key", dept.DepartmentKey).
				Err(err).
				Msg("department permission fetch failed, contributing no grants")
			continue
		}
		grantLists = append(grantLists, grants)
	}

	if failed == len(departments) {
		// Nothing answered; keep the app usable without caching the outage.
		return GuestSet(), apperrors.Wrapf(apperrors.ErrPermissionFetch, "[Resolver.Resolve] all %d department fetches failed", failed)
	}

	set := Merge(grantLists...)

	if failed == 0 {
		// Only complete resolutions are cached: caching a partial one would
		// pin the user to degraded permissions for a whole TTL.
		r.storeEntry(ctx, &CacheEntry{UserID: userID, Set: set, DepartmentSnapshot: snapshot, FetchedAt: r.nowFunc()})
		return set, nil
	}
	return set, apperrors.Wrapf(apperrors.ErrPermissionFetch, "[Resolver.Resolve] %d of %d department fetches failed", failed, len(departments))
}

// Invalidate drops the user's cached resolution immediately, both in memory
// and in the store. Used on logout and after permission-admin edits.
func (r *Resolver) Invalidate(ctx context.Context, userID string) error {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()

	if r.kv == nil {
		return nil
	}
	if err := r.kv.Remove(ctx, store.PermissionCacheKey(userID)); err != nil {
		return errors.Wrap(err, "[Resolver.Invalidate] remove cache entry")
	}
	return nil
}

func (r *Resolver) entryValid(entry *CacheEntry, snapshot string) bool {
	return r.nowFunc().Sub(entry.FetchedAt) < r.ttl && entry.DepartmentSnapshot == snapshot
}

// cachedEntry returns the in-memory entry, falling back to the persisted one.
func (r *Resolver) cachedEntry(ctx context.Context, userID string) *CacheEntry {
	r.mu.Lock()
	entry, ok := r.cache[userID]
	r.mu.Unlock()
	if ok {
		return entry
	}

	if r.kv == nil {
		return nil
	}
	data, err := r.kv.Get(ctx, store.PermissionCacheKey(userID))
	if err != nil {
		return nil
	}
	var persisted CacheEntry
	if err := json.Unmarshal(data, &persisted); err != nil {
		r.logger.Warn().Str("user_id", userID).Err(err).Msg("dropping undecodable permission cache entry")
		_ = r.kv.Remove(ctx, store.PermissionCacheKey(userID))
		return nil
	}

	r.mu.Lock()
	r.cache[userID] = &persisted
	r.mu.Unlock()
	return &persisted
}

func (r *Resolver) storeEntry(ctx context.Context, entry *CacheEntry) {
	r.mu.Lock()
	r.cache[entry.UserID] = entry
	r.mu.Unlock()

	if r.kv == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := r.kv.Set(ctx, store.PermissionCacheKey(entry.UserID), data); err != nil {
		r.logger.Warn().Str("user_id", entry.UserID).Err(err).Msg("persisting permission cache entry failed")
	}
}

// departmentSnapshot fingerprints a membership list so cache entries go stale
// when memberships change. Order-insensitive.
func departmentSnapshot(departments []profile.DepartmentRef) string {
	ids := make([]string, 0, len(departments))
	for _, dept := range departments {
		ids = append(ids, dept.DepartmentID)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
