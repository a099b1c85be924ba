package oauth2model

import "encoding/json"

// TokenResponse is the data payload of a successful token-endpoint exchange.
//
// The backend does not return the RFC 6749 body directly; it wraps it in the
// Result envelope below. ExpiresIn is a relative lifetime in seconds — the
// caller converts it to an absolute deadline at receipt time.
type TokenResponse struct {
	// AccessToken is opaque to this engine. The backend happens to issue
	// JWTs, but nothing here parses them.
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque long-lived token exchanged for new access
	// tokens. May be absent when the client was not granted refresh_token.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is "Bearer" in this deployment.
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// Scope is the space-separated granted scope, possibly narrower than
	// requested.
	Scope string `json:"scope,omitempty"`
}

// Result is the envelope every backend endpoint wraps its payload in:
// {code, data, msg}. Code zero means success; any other code carries a
// human-readable msg.
type Result struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// OK reports whether the envelope carries a successful payload.
func (r Result) OK() bool {
	return r.Code == 0
}

// DecodeResult parses an envelope body and, on success, unmarshals the data
// payload into out. A non-zero envelope code is returned as an Error so
// callers can classify it.
func DecodeResult(body []byte, out interface{}) error {
	var envelope Result
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if !envelope.OK() {
		return &Error{Code: envelope.Code, Description: envelope.Msg}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}
