package permission_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/config"
	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
	"github.com/jking1031/ZZIOT2.0-sub002/permission"
)

type fetcherConfig struct {
	config.Config
	baseURL string
}

func (c fetcherConfig) GetBaseURL() string {
	return c.baseURL
}

func TestHTTPFetcherDecodesGrants(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/department-permissions/10", r.URL.Path)
		require.Equal(t, "1", r.Header.Get(oauth2model.TenantHeader))
		fmt.Fprint(w, `{"code":0,"data":[
			{"permission_key":"reports","route_path":"/reports","module_name":"report","permission_level":2},
			{"permission_key":"lab_data","route_path":"/lab-data","module_name":"data","permission_level":1}
		],"msg":""}`)
	}))
	defer backend.Close()

	fetcher, err := permission.NewHTTPFetcher(fetcherConfig{Config: config.New(), baseURL: backend.URL}, backend.Client())
	require.NoError(t, err)

	grants, err := fetcher.FetchDepartmentGrants(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	require.Equal(t, permission.LevelWrite, grants[0].Level)
	require.Equal(t, "/lab-data", grants[1].RoutePath)
}

func TestHTTPFetcherErrorEnvelope(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":500,"data":null,"msg":"internal"}`)
	}))
	defer backend.Close()

	fetcher, err := permission.NewHTTPFetcher(fetcherConfig{Config: config.New(), baseURL: backend.URL}, backend.Client())
	require.NoError(t, err)

	_, err = fetcher.FetchDepartmentGrants(context.Background(), "10")
	require.Error(t, err)
}

func TestHTTPFetcherHTTPError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer backend.Close()

	fetcher, err := permission.NewHTTPFetcher(fetcherConfig{Config: config.New(), baseURL: backend.URL}, backend.Client())
	require.NoError(t, err)

	_, err = fetcher.FetchDepartmentGrants(context.Background(), "10")
	require.Error(t, err)
}
