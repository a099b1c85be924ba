// Package token owns the OAuth2 grant flows and the request interceptors that
// keep every outgoing API call carrying a live access token.
package token

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jking1031/ZZIOT2.0-sub002/credential"
	"github.com/jking1031/ZZIOT2.0-sub002/internal/apperrors"
	"github.com/jking1031/ZZIOT2.0-sub002/internal/config"
	"github.com/jking1031/ZZIOT2.0-sub002/internal/metrics"
	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
	"github.com/jking1031/ZZIOT2.0-sub002/store"
)

// maxResponseBody caps how much of a token-endpoint response is read.
const maxResponseBody = 1 << 20

// Manager drives the password and refresh grants against the token endpoint
// and owns the stored Credential. It is safe for concurrent use; concurrent
// refresh demand collapses into a single grant request (see Refresh).
type Manager struct {
	cfg        config.Config
	kv         store.KV
	httpClient *http.Client
	basicAuth  string // precomputed Basic authorization header value
	nowFunc    func() time.Time
	logger     zerolog.Logger

	refreshGroup singleflight.Group

	mu            sync.Mutex
	invalidated   bool   // reauthentication signal already fired for this credential
	onInvalidated func() // notified at most once per credential lifetime
}

type ManagerOption func(*Manager)

// WithHTTPClient replaces the default HTTP client used for grant requests.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithInvalidationHandler registers the callback fired when the session must
// be re-established interactively. Fired at most once per credential
// lifetime.
func WithInvalidationHandler(handler func()) ManagerOption {
	return func(m *Manager) {
		m.onInvalidated = handler
	}
}

// SetInvalidationHandler replaces the invalidation callback. Used by the
// session coordinator, which is constructed after the manager.
func (m *Manager) SetInvalidationHandler(handler func()) {
	m.mu.Lock()
	m.onInvalidated = handler
	m.mu.Unlock()
}

// New creates a Manager bound to one client-id/secret pair and one store.
func New(cfg config.Config, kv store.KV, options ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("[token.New] config is required")
	}
	if kv == nil {
		return nil, errors.New("[token.New] store is required")
	}

	m := &Manager{
		cfg:       cfg,
		kv:        kv,
		basicAuth: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.GetClientID()+":"+cfg.GetClientSecret())),
		nowFunc:   time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: cfg.GetHTTPTimeout()}
	}
	return m, nil
}

// Login performs a password grant. The scope defaults to the configured one
// when empty. On success the credential is persisted and returned.
func (m *Manager) Login(ctx context.Context, username, password, scope string) (*credential.Credential, error) {
	if scope == "" {
		scope = m.cfg.GetScope()
	}

	cred, err := m.requestToken(ctx, oauth2model.PasswordGrantForm(username, password, scope))
	if err != nil {
		var grantErr *oauth2model.Error
		if errors.As(err, &grantErr) && grantErr.InvalidGrant() {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "[Manager.Login] %s", grantErr.Description)
		}
		return nil, errors.Wrap(err, "[Manager.Login] password grant")
	}

	if err := m.persist(ctx, cred); err != nil {
		return nil, errors.Wrap(err, "[Manager.Login] persist credential")
	}

	m.mu.Lock()
	m.invalidated = false
	m.mu.Unlock()

	m.logger.Info().Str("username", username).Time("expires_at", cred.ExpiresAt).Msg("login succeeded")
	return cred, nil
}

// Refresh exchanges the stored refresh token for a fresh credential.
//
// Concurrent callers share one in-flight grant request: many backends rotate
// the refresh token on first use, so racing refreshes would invalidate each
// other. All waiters get the same result, success or failure.
func (m *Manager) Refresh(ctx context.Context) (*credential.Credential, error) {
	result, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		// The winning call must not die with the first waiter's context.
		return m.doRefresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return result.(*credential.Credential), nil
}

func (m *Manager) doRefresh(ctx context.Context) (*credential.Credential, error) {
	stored, err := m.StoredCredential(ctx)
	if err != nil {
		return nil, err
	}
	if stored.RefreshToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNoCredential, "[Manager.Refresh] no refresh token stored")
	}

	metrics.RefreshAttempts.Inc()
	cred, err := m.requestToken(ctx, oauth2model.RefreshGrantForm(stored.RefreshToken))
	if err != nil {
		var grantErr *oauth2model.Error
		if errors.As(err, &grantErr) {
			// Backend rejected the refresh token: terminal for the session.
			metrics.RefreshFailures.Inc()
			m.logger.Warn().Str("reason", grantErr.Description).Msg("refresh token rejected")
			m.invalidateCredential(ctx)
			return nil, apperrors.Wrapf(apperrors.ErrRefreshFailed, "[Manager.Refresh] %s", grantErr.Description)
		}
		return nil, errors.Wrap(err, "[Manager.Refresh] refresh grant")
	}

	if err := m.persist(ctx, cred); err != nil {
		return nil, errors.Wrap(err, "[Manager.Refresh] persist credential")
	}

	m.logger.Debug().Time("expires_at", cred.ExpiresAt).Msg("token refreshed")
	return cred, nil
}

// ValidAccessToken returns the current access token, refreshing it first when
// it is expired or inside the refresh leeway window.
func (m *Manager) ValidAccessToken(ctx context.Context) (string, error) {
	stored, err := m.StoredCredential(ctx)
	if err != nil {
		return "", err
	}
	if stored.Valid(m.nowFunc(), m.cfg.GetRefreshLeeway()) {
		return stored.AccessToken, nil
	}

	refreshed, err := m.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// StoredCredential loads the persisted credential, or ErrNoCredential when
// none is stored.
func (m *Manager) StoredCredential(ctx context.Context) (*credential.Credential, error) {
	data, err := m.kv.Get(ctx, store.KeyCredential)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Wrapf(apperrors.ErrNoCredential, "[Manager.StoredCredential]")
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.StoredCredential] read store")
	}
	cred, err := credential.Unmarshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.StoredCredential] decode credential")
	}
	return cred, nil
}

// Logout destroys the stored credential.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.kv.Remove(ctx, store.KeyCredential); err != nil {
		return errors.Wrap(err, "[Manager.Logout] remove credential")
	}
	m.mu.Lock()
	m.invalidated = false
	m.mu.Unlock()
	return nil
}

// invalidateCredential clears the stored credential and fires the
// invalidation handler, at most once per credential lifetime.
func (m *Manager) invalidateCredential(ctx context.Context) {
	m.mu.Lock()
	alreadyFired := m.invalidated
	m.invalidated = true
	handler := m.onInvalidated
	m.mu.Unlock()

	_ = m.kv.Remove(ctx, store.KeyCredential)

	if !alreadyFired && handler != nil {
		handler()
	}
}

// requestToken posts a grant form to the token endpoint using HTTP Basic
// client credentials (never a bearer token) and decodes the envelope.
func (m *Manager) requestToken(ctx context.Context, form url.Values) (*credential.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.GetBaseURL()+m.cfg.GetTokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.requestToken] build request")
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

	var tokenResp oauth2model.TokenResponse
	if err := oauth2model.DecodeResult(body, &tokenResp); err != nil {
		var grantErr *oauth2model.Error
		if errors.As(err, &grantErr) {
			grantErr.Status = resp.StatusCode
			return nil, grantErr
		}
		return nil, errors.Wrap(err, "[Manager.requestToken] decode response")
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("[Manager.requestToken] no access token in response")
	}

	return credential.FromTokenResponse(&tokenResp, m.nowFunc()), nil
}

func (m *Manager) persist(ctx context.Context, cred *credential.Credential) error {
	data, err := cred.Marshal()
	if err != nil {
		return err
	}
	return m.kv.Set(ctx, store.KeyCredential, data)
}

// classifyTransportErr maps transport failures onto the engine taxonomy.
func classifyTransportErr(err error) error {
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrapf(apperrors.ErrTimeout, "%s", err.Error())
	}
	return apperrors.Wrapf(apperrors.ErrNetwork, "%s", err.Error())
}
