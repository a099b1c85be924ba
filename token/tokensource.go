package token

import (
	"context"

	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*Manager)(nil)

// Token implements oauth2.TokenSource, so the manager can authorize any
// client built on golang.org/x/oauth2 (oauth2.NewClient, SDKs taking a
// TokenSource). Refresh goes through the manager's own single-flight path,
// never through the oauth2 package's.
func (m *Manager) Token() (*oauth2.Token, error) {
	ctx := context.Background()
	if _, err := m.ValidAccessToken(ctx); err != nil {
		return nil, err
	}
	cred, err := m.StoredCredential(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		TokenType:    cred.TokenType,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.ExpiresAt,
	}, nil
}
