// Package profile fetches and models the signed-in user's identity and
// department memberships. The profile is fetched once per login and treated
// as immutable for the session unless explicitly refreshed.
package profile

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/config"
	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
)

const maxResponseBody = 1 << 20

// DepartmentRef is one department membership carried by a user profile.
type DepartmentRef struct {
	DepartmentID  string `json:"department_id"`
	DepartmentKey string `json:"department_key"`
	Primary       bool   `json:"is_primary"`
}

// UserProfile is the session's user identity. Roles are hints carried as
// data; authorization decisions come from permission levels, never from
// role-name comparison.
type UserProfile struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	Roles       []string        `json:"roles,omitempty"`
	Departments []DepartmentRef `json:"departments"`
}

// PrimaryDepartment returns the membership flagged primary, falling back to
// the first one.
func (p *UserProfile) PrimaryDepartment() (DepartmentRef, bool) {
	for _, dept := range p.Departments {
		if dept.Primary {
			return dept, true
		}
	}
	if len(p.Departments) > 0 {
		return p.Departments[0], false
	}
	return DepartmentRef{}, false
}

// Source supplies the signed-in user's profile.
type Source interface {
	Fetch(ctx context.Context) (*UserProfile, error)
}

// Client fetches the profile from the user-info endpoint through an
// authorized HTTP client (one wrapping token.Transport).
type Client struct {
	cfg        config.Config
	httpClient *http.Client
}

var _ Source = (*Client)(nil)

func NewClient(cfg config.Config, httpClient *http.Client) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[profile.NewClient] config is required")
	}
	if httpClient == nil {
		return nil, errors.New("[profile.NewClient] http client is required")
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// userInfoPayload mirrors the user-info endpoint's data field. IDs come back
// numeric from the backend; the domain model keeps them as strings.
type userInfoPayload struct {
	ID          json.Number `json:"id"`
	Username    string      `json:"username"`
	Nickname    string      `json:"nickname"`
	Roles       []string    `json:"roles"`
	Departments []struct {
		ID      json.Number `json:"id"`
		Key     string      `json:"key"`
		Primary bool        `json:"primary"`
	} `json:"departments"`
}

// Fetch retrieves the current user's profile.
func (c *Client) Fetch(ctx context.Context) (*UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.GetBaseURL()+c.cfg.GetUserInfoEndpoint(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Fetch] build request")
	}
	req.Header.Set(oauth2model.TenantHeader, c.cfg.GetTenantID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Fetch] user-info request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Fetch] read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("[Client.Fetch] user-info returned status %d", resp.StatusCode)
	}

	var payload userInfoPayload
	if err := oauth2model.DecodeResult(body, &payload); err != nil {
		return nil, errors.Wrap(err, "[Client.Fetch] decode response")
	}

	userProfile := &UserProfile{
		ID:          payload.ID.String(),
		Username:    payload.Username,
		DisplayName: payload.Nickname,
		Roles:       payload.Roles,
	}
	for _, dept := range payload.Departments {
		userProfile.Departments = append(userProfile.Departments, DepartmentRef{
			DepartmentID:  dept.ID.String(),
			DepartmentKey: dept.Key,
			Primary:       dept.Primary,
		})
	}
	return userProfile, nil
}
