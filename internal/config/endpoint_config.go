package config

import "time"

// Endpoints carries the backend paths the engine talks to. Paths are relative
// to EnvConfig.GetBaseURL; deployments fronted by the yudao gateway prefix
// them with /admin-api/system via the file overlay.
type Endpoints struct{}

var _ EndpointConfig = Endpoints{}

func (Endpoints) GetTokenEndpoint() string {
	return "/oauth2/token"
}

func (Endpoints) GetCheckTokenEndpoint() string {
	return "/oauth2/check-token"
}

func (Endpoints) GetUserInfoEndpoint() string {
	return "/system/oauth2/user-info"
}

func (Endpoints) GetDepartmentPermissionEndpoint() string {
	return "/department-permissions"
}

// GetRefreshLeeway is how far ahead of expiry a token counts as stale and is
// refreshed proactively.
func (Endpoints) GetRefreshLeeway() time.Duration {
	return 5 * time.Minute
}

type Cache struct{}

var _ CacheConfig = Cache{}

func (Cache) GetPermissionCacheTTL() time.Duration {
	return 30 * time.Minute
}
