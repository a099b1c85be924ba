package permission_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jking1031/ZZIOT2.0-sub002/permission"
)

func TestMergeKeepsHighestLevel(t *testing.T) {
	deptA := []permission.Grant{
		{PermissionKey: "reports", RoutePath: "/reports", Level: permission.LevelRead},
	}
	deptB := []permission.Grant{
		{PermissionKey: "reports", RoutePath: "/reports", Level: permission.LevelWrite},
	}

	resolved := permission.Merge(deptA, deptB)
	require.Equal(t, permission.LevelWrite, resolved.Level("reports"))

	// Order must not matter.
	resolved = permission.Merge(deptB, deptA)
	require.Equal(t, permission.LevelWrite, resolved.Level("reports"))
}

func TestMergeDropsNoneAndEmptyKeys(t *testing.T) {
	resolved := permission.Merge([]permission.Grant{
		{PermissionKey: "hidden", Level: permission.LevelNone},
		{PermissionKey: "", Level: permission.LevelAdmin},
		{PermissionKey: "visible", Level: permission.LevelRead},
	})

	require.Len(t, resolved, 1)
	require.Contains(t, resolved, "visible")
}

func TestCheckPermissionAbsentKeyIsNone(t *testing.T) {
	resolved := permission.Merge([]permission.Grant{
		{PermissionKey: "data_entry", Level: permission.LevelWrite},
	})

	require.True(t, resolved.CheckPermission("data_entry", permission.LevelRead))
	require.True(t, resolved.CheckPermission("data_entry", permission.LevelWrite))
	require.False(t, resolved.CheckPermission("data_entry", permission.LevelAdmin))
	require.False(t, resolved.CheckPermission("unknown", permission.LevelRead))
	require.True(t, resolved.CheckPermission("unknown", permission.LevelNone))
}

func TestCheckRouteWildcard(t *testing.T) {
	resolved := permission.Merge([]permission.Grant{
		{PermissionKey: "admin_area", RoutePath: "/admin/*", Level: permission.LevelAdmin},
		{PermissionKey: "reports", RoutePath: "/reports", Level: permission.LevelRead},
	})

	require.True(t, resolved.CheckRoute("/admin/users", permission.LevelWrite))
	require.True(t, resolved.CheckRoute("/admin/users", permission.LevelAdmin))
	require.False(t, resolved.CheckRoute("/public/home", permission.LevelRead))
	require.False(t, resolved.CheckRoute("/admin", permission.LevelRead), "wildcard requires a segment after the prefix")
	require.False(t, resolved.CheckRoute("/admin/users/7", permission.LevelRead), "wildcard spans a single segment")

	require.True(t, resolved.CheckRoute("/reports", permission.LevelRead), "exact match")
	require.False(t, resolved.CheckRoute("/reports", permission.LevelWrite), "exact match at insufficient level")
}

func TestGuestSetIsFixedAndReadOnly(t *testing.T) {
	guest := permission.GuestSet()

	require.Len(t, guest, 2)
	require.Equal(t, permission.LevelRead, guest.Level("home_view"))
	require.Equal(t, permission.LevelRead, guest.Level("profile_view"))
	require.True(t, guest.CheckRoute("/home", permission.LevelRead))
	require.True(t, guest.CheckRoute("/profile", permission.LevelRead))
	require.False(t, guest.CheckRoute("/home", permission.LevelWrite))

	// Mutating one copy must not leak into the next.
	guest["home_view"] = permission.Grant{PermissionKey: "home_view", Level: permission.LevelAdmin}
	require.Equal(t, permission.LevelRead, permission.GuestSet().Level("home_view"))
}

func TestIsAdminDerivedFromLevel(t *testing.T) {
	resolved := permission.Merge([]permission.Grant{
		{PermissionKey: "department_permission", Level: permission.LevelAdmin},
		{PermissionKey: "reports", Level: permission.LevelWrite},
	})

	require.True(t, resolved.IsAdmin("department_permission"))
	require.False(t, resolved.IsAdmin("reports"))
}

func TestParseLevelClamps(t *testing.T) {
	require.Equal(t, permission.LevelNone, permission.ParseLevel(-2))
	require.Equal(t, permission.LevelWrite, permission.ParseLevel(2))
	require.Equal(t, permission.LevelAdmin, permission.ParseLevel(9))
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "admin", permission.LevelAdmin.String())
	require.Equal(t, "none", permission.LevelNone.String())
}
