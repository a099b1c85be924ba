package permission

import "strings"

// Grant is one page/feature permission sourced from a department.
type Grant struct {
	PermissionKey string `json:"permission_key"`
	RoutePath     string `json:"route_path"`
	ModuleName    string `json:"module_name"`
	Level         Level  `json:"permission_level"`
}

// ResolvedSet maps permission key to the winning grant: for every key the
// level equals the max over all source grants across the user's departments.
// Keys that would resolve to None are absent.
type ResolvedSet map[string]Grant

// Merge folds per-department grant lists into a ResolvedSet, keeping the
// highest level per key. For equal levels the first-seen grant's route and
// module win, which keeps merges deterministic in department order.
func Merge(grantLists ...[]Grant) ResolvedSet {
	resolved := make(ResolvedSet)
	for _, grants := range grantLists {
		for _, grant := range grants {
			if grant.Level <= LevelNone || grant.PermissionKey == "" {
				continue
			}
			existing, ok := resolved[grant.PermissionKey]
			if !ok || grant.Level > existing.Level {
				resolved[grant.PermissionKey] = grant
			}
		}
	}
	return resolved
}

// CheckPermission reports whether the set grants at least the required level
// for key. Absent keys are LevelNone.
func (s ResolvedSet) CheckPermission(key string, required Level) bool {
	if required <= LevelNone {
		return true
	}
	return s[key].Level.Satisfies(required)
}

// CheckRoute reports whether at least one grant whose route matches path
// carries the required level. Routes may end in a single trailing wildcard
// segment: "prefix/*" matches "prefix/anything".
func (s ResolvedSet) CheckRoute(path string, required Level) bool {
	for _, grant := range s {
		if routeMatches(grant.RoutePath, path) && grant.Level.Satisfies(required) {
			return true
		}
	}
	return false
}

// Level returns the resolved level for key, LevelNone when absent.
func (s ResolvedSet) Level(key string) Level {
	return s[key].Level
}

// IsAdmin reports whether the set carries an Admin-level grant for key. Admin
// status derives from permission level only, never from role names.
func (s ResolvedSet) IsAdmin(key string) bool {
	return s.CheckPermission(key, LevelAdmin)
}

func routeMatches(pattern, path string) bool {
	if pattern == path {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, "/*")
	if !ok {
		return false
	}
	remainder, ok := strings.CutPrefix(path, prefix+"/")
	if !ok {
		return false
	}
	// Wildcard spans exactly one segment.
	return remainder != "" && !strings.Contains(remainder, "/")
}

// GuestModuleName is the module guest grants are filed under.
const GuestModuleName = "基础功能"

// GuestSet is the fixed fallback for users with no department memberships:
// small and read-only, enough to keep the app minimally usable.
func GuestSet() ResolvedSet {
	return ResolvedSet{
		"home_view": {
			PermissionKey: "home_view",
			RoutePath:     "/home",
			ModuleName:    GuestModuleName,
			Level:         LevelRead,
		},
		"profile_view": {
			PermissionKey: "profile_view",
			RoutePath:     "/profile",
			ModuleName:    GuestModuleName,
			Level:         LevelRead,
		},
	}
}
