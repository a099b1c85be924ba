package permission

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/config"
	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
)

const maxResponseBody = 1 << 20

// HTTPFetcher fetches department grant lists from the backend through an
// authorized HTTP client.
type HTTPFetcher struct {
	cfg        config.Config
	httpClient *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(cfg config.Config, httpClient *http.Client) (*HTTPFetcher, error) {
	if cfg == nil {
		return nil, errors.New("[NewHTTPFetcher] config is required")
	}
	if httpClient == nil {
		return nil, errors.New("[NewHTTPFetcher] http client is required")
	}
	return &HTTPFetcher{cfg: cfg, httpClient: httpClient}, nil
}

func (f *HTTPFetcher) FetchDepartmentGrants(ctx context.Context, departmentID string) ([]Grant, error) {
	url := f.cfg.GetBaseURL() + f.cfg.GetDepartmentPermissionEndpoint() + "/" + departmentID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPFetcher.FetchDepartmentGrants] build request")
	}
	req.Header.Set(oauth2model.TenantHeader, f.cfg.GetTenantID())

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPFetcher.FetchDepartmentGrants] request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPFetcher.FetchDepartmentGrants] read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("[HTTPFetcher.FetchDepartmentGrants] status %d for department %s", resp.StatusCode, departmentID)
	}

	var grants []Grant
	if err := oauth2model.DecodeResult(body, &grants); err != nil {
		return nil, errors.Wrap(err, "[HTTPFetcher.FetchDepartmentGrants] decode response")
	}
	return grants, nil
}
