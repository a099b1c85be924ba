package permission_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/apperrors"
	"github.com/jking1031/ZZIOT2.0-sub002/permission"
	"github.com/jking1031/ZZIOT2.0-sub002/permission/fetchfake"
	"github.com/jking1031/ZZIOT2.0-sub002/profile"
	"github.com/jking1031/ZZIOT2.0-sub002/store/memstore"
)

const testUserID = "42"

var testDepartments = []profile.DepartmentRef{
	{DepartmentID: "10", DepartmentKey: "tech", Primary: true},
	{DepartmentID: "20", DepartmentKey: "ops"},
}

type resolverFixture struct {
	fetcher  *fetchfake.FakeFetcher
	kv       *memstore.MemStore
	resolver *permission.Resolver
	now      time.Time
}

func setupResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	f := &resolverFixture{
		fetcher: fetchfake.New(),
		kv:      memstore.New(),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	f.fetcher.SetGrants("10", []permission.Grant{
		{PermissionKey: "reports", RoutePath: "/reports", ModuleName: "report", Level: permission.LevelRead},
		{PermissionKey: "data_entry", RoutePath: "/data-entry-center", ModuleName: "data", Level: permission.LevelWrite},
	})
	f.fetcher.SetGrants("20", []permission.Grant{
		{PermissionKey: "reports", RoutePath: "/reports", ModuleName: "report", Level: permission.LevelWrite},
	})

	resolver, err := permission.NewResolver(f.fetcher, f.kv,
		permission.WithNowFunc(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.resolver = resolver
	return f
}

func TestResolveMergesAcrossDepartments(t *testing.T) {
	f := setupResolverFixture(t)

	resolved, err := f.resolver.Resolve(context.Background(), testUserID, testDepartments, false)
	require.NoError(t, err)

	require.Equal(t, permission.LevelWrite, resolved.Level("reports"), "highest level across departments wins")
	require.Equal(t, permission.LevelWrite, resolved.Level("data_entry"))
}

func TestResolveCachesWithinTTL(t *testing.T) {
	f := setupResolverFixture(t)
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)
	require.Equal(t, 2, f.fetcher.TotalCalls())

	f.now = f.now.Add(29 * time.Minute)
	second, err := f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 2, f.fetcher.TotalCalls(), "no network calls within TTL")

	f.now = f.now.Add(2 * time.Minute) // past the 30-minute TTL
	_, err = f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)
	require.Equal(t, 4, f.fetcher.TotalCalls(), "exactly one re-fetch per department after expiry")
}

func TestResolveForceRefreshBypassesCache(t *testing.T) {
	f := setupResolverFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)
	_, err = f.resolver.Resolve(ctx, testUserID, testDepartments, true)
	require.NoError(t, err)
	require.Equal(t, 4, f.fetcher.TotalCalls())
}

func TestResolveDepartmentChangeInvalidatesCache(t *testing.T) {
	f := setupResolverFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)

	// A membership edit must not serve the stale snapshot.
	changed := testDepartments[:1]
	resolved, err := f.resolver.Resolve(ctx, testUserID, changed, false)
	require.NoError(t, err)
	require.Equal(t, permission.LevelRead, resolved.Level("reports"))
}

func TestResolveGuestFallbackForUnaffiliatedUser(t *testing.T) {
	f := setupResolverFixture(t)

	resolved, err := f.resolver.Resolve(context.Background(), testUserID, nil, false)
	require.NoError(t, err)
	require.Equal(t, permission.GuestSet(), resolved)
	require.Equal(t, 0, f.fetcher.TotalCalls())
}

func TestResolvePartialFailureKeepsAnsweringDepartments(t *testing.T) {
	f := setupResolverFixture(t)
	f.fetcher.SetError("20", errors.New("department backend down"))

	resolved, err := f.resolver.Resolve(context.Background(), testUserID, testDepartments, false)
	require.ErrorIs(t, err, apperrors.ErrPermissionFetch)

	// Department 10 still contributes.
	require.Equal(t, permission.LevelRead, resolved.Level("reports"))
	require.Equal(t, permission.LevelWrite, resolved.Level("data_entry"))
}

func TestResolvePartialFailureIsNotCached(t *testing.T) {
	f := setupResolverFixture(t)
	ctx := context.Background()
	f.fetcher.SetError("20", errors.New("department backend down"))

	_, err := f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.ErrorIs(t, err, apperrors.ErrPermissionFetch)

	// Once the backend recovers, the next resolve fetches again instead of
	// serving the degraded set.
	f.fetcher.SetGrants("20", []permission.Grant{
		{PermissionKey: "reports", RoutePath: "/reports", Level: permission.LevelWrite},
	})
	resolved, err := f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)
	require.Equal(t, permission.LevelWrite, resolved.Level("reports"))
}

func TestResolveAllDepartmentsFailedDegradesToGuest(t *testing.T) {
	f := setupResolverFixture(t)
	f.fetcher.SetError("10", errors.New("down"))
	f.fetcher.SetError("20", errors.New("down"))

	resolved, err := f.resolver.Resolve(context.Background(), testUserID, testDepartments, false)
	require.ErrorIs(t, err, apperrors.ErrPermissionFetch)
	require.Equal(t, permission.GuestSet(), resolved)
}

func TestInvalidateClearsMemoryAndStore(t *testing.T) {
	f := setupResolverFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)

	require.NoError(t, f.resolver.Invalidate(ctx, testUserID))

	_, err = f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)
	require.Equal(t, 4, f.fetcher.TotalCalls(), "invalidate forces a full re-fetch")
}

func TestResolveReloadsPersistedCache(t *testing.T) {
	f := setupResolverFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)

	// A fresh resolver sharing the store must serve the persisted entry
	// without touching the network.
	fresh, err := permission.NewResolver(f.fetcher, f.kv,
		permission.WithNowFunc(func() time.Time { return f.now }))
	require.NoError(t, err)

	resolved, err := fresh.Resolve(ctx, testUserID, testDepartments, false)
	require.NoError(t, err)
	require.Equal(t, permission.LevelWrite, resolved.Level("reports"))
	require.Equal(t, 2, f.fetcher.TotalCalls())
}
