package oauth2model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
)

func TestDecodeResultSuccess(t *testing.T) {
	body := []byte(`{"code":0,"data":{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":7200,"scope":"user.read"},"msg":""}`)

	var resp oauth2model.TokenResponse
	require.NoError(t, oauth2model.DecodeResult(body, &resp))
	require.Equal(t, "at-1", resp.AccessToken)
	require.Equal(t, "rt-1", resp.RefreshToken)
	require.Equal(t, int64(7200), resp.ExpiresIn)
}

func TestDecodeResultEnvelopeError(t *testing.T) {
	body := []byte(`{"code":400,"data":null,"msg":"账号或密码不正确"}`)

	var resp oauth2model.TokenResponse
	err := oauth2model.DecodeResult(body, &resp)
	require.Error(t, err)

	var grantErr *oauth2model.Error
	require.ErrorAs(t, err, &grantErr)
	require.Equal(t, 400, grantErr.Code)
	require.True(t, grantErr.InvalidGrant())
}

func TestParseErrorBodyRFCForm(t *testing.T) {
	body := []byte(`{"error":"invalid_grant","error_description":"Bad credentials"}`)

	grantErr := oauth2model.ParseErrorBody(400, body)
	require.Equal(t, oauth2model.ErrorCodeInvalidGrant, grantErr.OAuthError)
	require.True(t, grantErr.InvalidGrant())
}

func TestParseErrorBodyUnknown(t *testing.T) {
	grantErr := oauth2model.ParseErrorBody(502, []byte("<html>bad gateway</html>"))
	require.Equal(t, 502, grantErr.Status)
	require.False(t, grantErr.InvalidGrant())
}

func TestParseErrorBodyInvalidClientIsNotInvalidGrant(t *testing.T) {
	body := []byte(`{"error":"invalid_client","error_description":"client auth failed"}`)
	require.False(t, oauth2model.ParseErrorBody(401, body).InvalidGrant())
}
