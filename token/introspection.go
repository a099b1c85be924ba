package token

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
)

// TokenInfo is the introspection payload from the check-token endpoint.
type TokenInfo struct {
	UserID      int64    `json:"user_id"`
	UserType    int      `json:"user_type,omitempty"`
	TenantID    int64    `json:"tenant_id,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	AccessToken string   `json:"access_token,omitempty"`
	ExpiresTime int64    `json:"expires_time,omitempty"` // epoch millis
}

// CheckToken introspects an access token against the backend. An empty token
// introspects the currently stored one.
func (m *Manager) CheckToken(ctx context.Context, accessToken string) (*TokenInfo, error) {
	if accessToken == "" {
		stored, err := m.StoredCredential(ctx)
		if err != nil {
			return nil, err
		}
		accessToken = stored.AccessToken
	}

	form := oauth2model.CheckTokenForm(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.GetBaseURL()+m.cfg.GetCheckTokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.CheckToken] build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", m.basicAuth)
	req.Header.Set(oauth2model.TenantHeader, m.cfg.GetTenantID())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, oauth2model.ParseErrorBody(resp.StatusCode, body)
	}

	var info TokenInfo
	if err := oauth2model.DecodeResult(body, &info); err != nil {
		return nil, errors.Wrap(err, "[Manager.CheckToken] decode response")
	}
	return &info, nil
}
