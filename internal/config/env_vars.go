package config

import (
	"os"
	"strconv"
	"time"
)

const (
	baseURLVar      = "SESSION_BASE_URL"
	clientIDVar     = "SESSION_CLIENT_ID"
	clientSecretVar = "SESSION_CLIENT_SECRET"
	scopeVar        = "SESSION_SCOPE"
	tenantIDVar     = "SESSION_TENANT_ID"
	httpTimeoutVar  = "SESSION_HTTP_TIMEOUT_SECONDS"
	storePathVar    = "SESSION_STORE_PATH"
	envVar          = "ENV"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "https://office.jzz77.cn:9003")
}

func (EnvVars) GetClientID() string {
	return GetEnv(clientIDVar, "plant-monitor-app")
}

func (EnvVars) GetClientSecret() string {
	return GetEnv(clientSecretVar, "")
}

func (EnvVars) GetScope() string {
	return GetEnv(scopeVar, "user.read user.write")
}

func (EnvVars) GetTenantID() string {
	return GetEnv(tenantIDVar, "1")
}

func (EnvVars) GetHTTPTimeout() time.Duration {
	seconds, err := strconv.Atoi(GetEnv(httpTimeoutVar, "10"))
	if err != nil || seconds <= 0 {
		seconds = 10
	}
	return time.Duration(seconds) * time.Second
}

func (EnvVars) GetStorePath() string {
	return GetEnv(storePathVar, "data/session.sqlite3")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "development")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
