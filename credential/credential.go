// Package credential models the token material of one signed-in session.
// Exactly one live Credential exists per session; it is replaced wholesale on
// refresh and destroyed on logout or irrecoverable refresh failure.
package credential

import (
	"encoding/json"
	"time"

	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
)

// Credential is the persisted token material. ExpiresAt is absolute; the
// relative expires_in hint from the wire is resolved at receipt time.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope,omitempty"`
}

// FromTokenResponse converts a token-endpoint payload into a Credential,
// resolving expires_in against now.
func FromTokenResponse(resp *oauth2model.TokenResponse, now time.Time) *Credential {
	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &Credential{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second),
		Scope:        resp.Scope,
	}
}

// Valid reports whether the access token is usable at now. leeway moves the
// deadline forward so callers refresh before the token actually dies
// mid-request.
func (c *Credential) Valid(now time.Time, leeway time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-leeway))
}

// Marshal encodes the credential as the opaque JSON blob the store holds.
func (c *Credential) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal decodes a stored credential blob.
func Unmarshal(data []byte) (*Credential, error) {
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
