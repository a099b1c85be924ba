package oauth2model

import (
	"encoding/json"
	"fmt"
)

// OAuth2 error codes relevant to the grant flows this engine drives.
const (
	ErrorCodeInvalidGrant  = "invalid_grant"
	ErrorCodeInvalidClient = "invalid_client"
	ErrorCodeInvalidScope  = "invalid_scope"
)

// Error is a grant rejection from the token endpoint, either in envelope form
// (non-zero code + msg, sometimes under HTTP 200) or RFC 6749 form
// (error + error_description under a 4xx status).
type Error struct {
	Status      int    // HTTP status of the response
	Code        int    // envelope code, zero when the RFC form was returned
	OAuthError  string // RFC 6749 "error" field
	Description string
}

func (e *Error) Error() string {
	if e.OAuthError != "" {
		return fmt.Sprintf("token endpoint: %s: %s", e.OAuthError, e.Description)
	}
	return fmt.Sprintf("token endpoint: code %d: %s", e.Code, e.Description)
}

// InvalidGrant reports whether the rejection means the presented credentials
// or refresh token are bad, as opposed to a transport problem or a malformed
// client request.
func (e *Error) InvalidGrant() bool {
	if e.OAuthError != "" {
		return e.OAuthError == ErrorCodeInvalidGrant
	}
	return e.Code >= 400 && e.Code < 500
}

// ParseErrorBody classifies a rejected token-endpoint response. It accepts
// both the envelope form and the RFC form; an unparseable body yields a
// generic Error carrying only the HTTP status.
func ParseErrorBody(status int, body []byte) *Error {
	var rfc struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &rfc); err == nil && rfc.Error != "" {
		return &Error{Status: status, OAuthError: rfc.Error, Description: rfc.Description}
	}

	var envelope Result
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Code != 0 {
		return &Error{Status: status, Code: envelope.Code, Description: envelope.Msg}
	}

	return &Error{Status: status, Description: fmt.Sprintf("http status %d", status)}
}
