package oauth2model

import "net/url"

// Grant types supported by the engine.
const (
	GrantTypePassword     = "password"
	GrantTypeRefreshToken = "refresh_token"
)

// TenantHeader is the multi-tenant routing header the backend requires on
// every request.
const TenantHeader = "tenant-id"

// PasswordGrantForm builds the form body for a resource-owner password grant.
func PasswordGrantForm(username, password, scope string) url.Values {
	form := url.Values{
		"grant_type": {GrantTypePassword},
		"username":   {username},
		"password":   {password},
	}
	if scope != "" {
		form.Set("scope", scope)
	}
	return form
}

// RefreshGrantForm builds the form body for a refresh-token grant.
func RefreshGrantForm(refreshToken string) url.Values {
	return url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {refreshToken},
	}
}

// CheckTokenForm builds the form body for the token introspection endpoint.
func CheckTokenForm(token string) url.Values {
	return url.Values{"token": {token}}
}
