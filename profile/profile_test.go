package profile_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/config"
	"github.com/jking1031/ZZIOT2.0-sub002/oauth2model"
	"github.com/jking1031/ZZIOT2.0-sub002/profile"
)

type testConfig struct {
	config.Config
	baseURL string
}

func (c testConfig) GetBaseURL() string {
	return c.baseURL
}

func TestFetchDecodesProfile(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/system/oauth2/user-info", r.URL.Path)
		require.Equal(t, "1", r.Header.Get(oauth2model.TenantHeader))
		fmt.Fprint(w, `{"code":0,"data":{
			"id":42,
			"username":"zhang.wei",
			"nickname":"张伟",
			"roles":["operator"],
			"departments":[
				{"id":10,"key":"tech","primary":true},
				{"id":20,"key":"ops","primary":false}
			]
		},"msg":""}`)
	}))
	defer backend.Close()

	client, err := profile.NewClient(testConfig{Config: config.New(), baseURL: backend.URL}, backend.Client())
	require.NoError(t, err)

	userProfile, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "42", userProfile.ID)
	require.Equal(t, "zhang.wei", userProfile.Username)
	require.Equal(t, "张伟", userProfile.DisplayName)
	require.Len(t, userProfile.Departments, 2)
	require.Equal(t, "10", userProfile.Departments[0].DepartmentID)
	require.True(t, userProfile.Departments[0].Primary)
}

func TestFetchErrorEnvelope(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":401,"data":null,"msg":"未登录"}`)
	}))
	defer backend.Close()

	client, err := profile.NewClient(testConfig{Config: config.New(), baseURL: backend.URL}, backend.Client())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.Error(t, err)
}

func TestPrimaryDepartment(t *testing.T) {
	userProfile := &profile.UserProfile{
		Departments: []profile.DepartmentRef{
			{DepartmentID: "10", DepartmentKey: "tech"},
			{DepartmentID: "20", DepartmentKey: "ops", Primary: true},
		},
	}

	dept, explicit := userProfile.PrimaryDepartment()
	require.True(t, explicit)
	require.Equal(t, "ops", dept.DepartmentKey)

	userProfile.Departments[1].Primary = false
	dept, explicit = userProfile.PrimaryDepartment()
	require.False(t, explicit)
	require.Equal(t, "tech", dept.DepartmentKey, "falls back to the first membership")

	_, ok := (&profile.UserProfile{}).PrimaryDepartment()
	require.False(t, ok)
}
