package config

import "time"

type Config interface {
	EnvConfig
	EndpointConfig
	CacheConfig
}

type EnvConfig interface {
	GetBaseURL() string
	GetClientID() string
	GetClientSecret() string
	GetScope() string
	GetTenantID() string
	GetHTTPTimeout() time.Duration
	GetStorePath() string
	GetEnv() string
}

type EndpointConfig interface {
	GetTokenEndpoint() string
	GetCheckTokenEndpoint() string
	GetUserInfoEndpoint() string
	GetDepartmentPermissionEndpoint() string
	GetRefreshLeeway() time.Duration
}

type CacheConfig interface {
	GetPermissionCacheTTL() time.Duration
}

type mainConfig struct {
	EnvVars
	Endpoints
	Cache
}

func New() Config {
	return mainConfig{}
}
