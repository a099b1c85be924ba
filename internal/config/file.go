package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Tenant is one entry of the selectable tenant list some deployments ship.
type Tenant struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// FileOverlay holds optional overrides loaded from a YAML file. Zero-valued
// fields fall through to the env/default configuration.
type FileOverlay struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
	TenantID     string `yaml:"tenant_id"`

	Endpoints struct {
		Token                string `yaml:"token"`
		CheckToken           string `yaml:"check_token"`
		UserInfo             string `yaml:"user_info"`
		DepartmentPermission string `yaml:"department_permission"`
	} `yaml:"endpoints"`

	RefreshLeewaySeconds      int `yaml:"refresh_leeway_seconds"`
	PermissionCacheTTLMinutes int `yaml:"permission_cache_ttl_minutes"`

	Tenants []Tenant `yaml:"tenants"`
}

type fileConfig struct {
	mainConfig
	overlay FileOverlay
}

// NewFromFile loads a YAML overlay on top of the env-backed defaults.
func NewFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFromFile] read config file")
	}
	var overlay FileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, errors.Wrap(err, "[NewFromFile] parse config file")
	}
	return fileConfig{overlay: overlay}, nil
}

func override(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func (f fileConfig) GetBaseURL() string {
	return override(f.overlay.BaseURL, f.mainConfig.GetBaseURL())
}

func (f fileConfig) GetClientID() string {
	return override(f.overlay.ClientID, f.mainConfig.GetClientID())
}

func (f fileConfig) GetClientSecret() string {
	return override(f.overlay.ClientSecret, f.mainConfig.GetClientSecret())
}

func (f fileConfig) GetScope() string {
	return override(f.overlay.Scope, f.mainConfig.GetScope())
}

func (f fileConfig) GetTenantID() string {
	return override(f.overlay.TenantID, f.mainConfig.GetTenantID())
}

func (f fileConfig) GetTokenEndpoint() string {
	return override(f.overlay.Endpoints.Token, f.mainConfig.GetTokenEndpoint())
}

func (f fileConfig) GetCheckTokenEndpoint() string {
	return override(f.overlay.Endpoints.CheckToken, f.mainConfig.GetCheckTokenEndpoint())
}

func (f fileConfig) GetUserInfoEndpoint() string {
	return override(f.overlay.Endpoints.UserInfo, f.mainConfig.GetUserInfoEndpoint())
}

func (f fileConfig) GetDepartmentPermissionEndpoint() string {
	return override(f.overlay.Endpoints.DepartmentPermission, f.mainConfig.GetDepartmentPermissionEndpoint())
}

func (f fileConfig) GetRefreshLeeway() time.Duration {
	if f.overlay.RefreshLeewaySeconds > 0 {
		return time.Duration(f.overlay.RefreshLeewaySeconds) * time.Second
	}
	return f.mainConfig.GetRefreshLeeway()
}

func (f fileConfig) GetPermissionCacheTTL() time.Duration {
	if f.overlay.PermissionCacheTTLMinutes > 0 {
		return time.Duration(f.overlay.PermissionCacheTTLMinutes) * time.Minute
	}
	return f.mainConfig.GetPermissionCacheTTL()
}

// Tenants returns the selectable tenant list, if the overlay supplied one.
func (f fileConfig) Tenants() []Tenant {
	return f.overlay.Tenants
}
