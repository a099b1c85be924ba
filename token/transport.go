package token

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/apperrors"
	"github.com/jking1031/ZZIOT2.0-sub002/internal/metrics"
	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
)

// Transport is the request/response interceptor pair from the session
// contract, expressed as an http.RoundTripper. Outgoing requests get a live
// bearer token and the tenant header; a 401 response triggers exactly one
// shared refresh and one replay. Token-endpoint requests are recognised and
// given Basic client credentials instead, so a refresh never recurses into
// itself.
type Transport struct {
	manager   *Manager
	base      http.RoundTripper
	tokenHost string
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base with the manager's interceptors. A nil base means
// http.DefaultTransport.
func NewTransport(manager *Manager, base http.RoundTripper) (*Transport, error) {
	if manager == nil {
		return nil, errors.New("[NewTransport] manager is required")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	baseURL, err := url.Parse(manager.cfg.GetBaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "[NewTransport] parse base URL")
	}
	return &Transport{manager: manager, base: base, tokenHost: baseURL.Host}, nil
}

// Client returns an *http.Client whose requests pass through the transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t, Timeout: t.manager.cfg.GetHTTPTimeout()}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.isTokenEndpoint(req) {
		clone := req.Clone(req.Context())
		clone.Header.Set("Authorization", t.manager.basicAuth)
		clone.Header.Set(oauth2model.TenantHeader, t.manager.cfg.GetTenantID())
		return t.base.RoundTrip(clone)
	}

	accessToken, err := t.manager.ValidAccessToken(req.Context())
	if err != nil {
		return nil, errors.Wrap(err, "[Transport.RoundTrip] authorize request")
	}

	resp, err := t.base.RoundTrip(t.authorized(req, accessToken))
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// Body already consumed and not replayable; hand the 401 back.
		return resp, nil
	}

	// The token the request carried is no longer accepted. Refresh once
	// (shared across concurrent 401s) and replay.
	drainAndClose(resp.Body)

	refreshed, err := t.manager.Refresh(req.Context())
	if err != nil {
		if apperrors.IsTerminal(err) {
			return nil, apperrors.Wrapf(apperrors.ErrReauthenticationRequired, "[Transport.RoundTrip] refresh after 401 failed")
		}
		return nil, errors.Wrap(err, "[Transport.RoundTrip] refresh after 401")
	}

	metrics.UnauthorizedReplays.Inc()
	replay := t.authorized(req, refreshed.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[Transport.RoundTrip] reconstruct request body")
		}
		replay.Body = body
	}

	replayResp, err := t.base.RoundTrip(replay)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	if replayResp.StatusCode == http.StatusUnauthorized {
		// A fresh token was rejected: the session itself is dead.
		drainAndClose(replayResp.Body)
		t.manager.invalidateCredential(req.Context())
		return nil, apperrors.Wrapf(apperrors.ErrReauthenticationRequired, "[Transport.RoundTrip] replay rejected")
	}
	return replayResp, nil
}

// authorized clones req with bearer and tenant headers set. RoundTrip must
// not mutate the caller's request.
func (t *Transport) authorized(req *http.Request, accessToken string) *http.Request {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+accessToken)
	clone.Header.Set(oauth2model.TenantHeader, t.manager.cfg.GetTenantID())
	return clone
}

// isTokenEndpoint recognises requests bound for the backend's own token or
// introspection endpoint. The host check keeps client credentials off any
// third-party URL whose path merely resembles a token endpoint.
func (t *Transport) isTokenEndpoint(req *http.Request) bool {
	if req.URL.Host != t.tokenHost {
		return false
	}
	path := req.URL.Path
	return strings.HasSuffix(path, t.manager.cfg.GetTokenEndpoint()) ||
		strings.HasSuffix(path, t.manager.cfg.GetCheckTokenEndpoint())
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBody))
	_ = body.Close()
}
