package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/abdul-hamid-achik/hitcontract/packages/auth/oauth2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_StaticTypes(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		header string
		value  string
	}{
		{"basic", Config{Type: TypeBasic, Username: "admin", Password: "secret"}, "Authorization", "Basic YWRtaW46c2VjcmV0"},
		{"bearer", Config{Type: TypeBearer, Token: "abc"}, "Authorization", "Bearer abc"},
		{"api key default header", Config{Type: TypeAPIKey, Key: "k1"}, "X-API-Key", "k1"},
		{"api key custom header", Config{Type: TypeAPIKey, Header: "X-Tenant-Key", Key: "k2"}, "X-Tenant-Key", "k2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.config.Validate())
			headers := map[string]string{}
			require.NoError(t, Apply(context.Background(), &tt.config, headers))
			assert.Equal(t, tt.value, headers[tt.header])
		})
	}
}

func TestApply_KeepsExplicitHeader(t *testing.T) {
	headers := map[string]string{"authorization": "Bearer explicit"}
	require.NoError(t, Apply(context.Background(), &Config{Type: TypeBearer, Token: "abc"}, headers))
	assert.Equal(t, map[string]string{"authorization": "Bearer explicit"}, headers)
}

func TestApply_Nil(t *testing.T) {
	assert.NoError(t, Apply(context.Background(), nil, map[string]string{}))
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Config{Type: "digest"}).Validate())
	assert.Error(t, (&Config{Type: TypeBasic}).Validate())
	assert.Error(t, (&Config{Type: TypeOAuth2, ClientID: "c"}).Validate())
	assert.NoError(t, (&Config{Type: TypeOAuth2, TokenURL: "http://auth.test/token", ClientID: "c"}).Validate())
}

func TestResolve(t *testing.T) {
	c := &Config{Type: TypeBearer, Token: "{{token}}", Scopes: []string{"read"}}
	out, err := c.Resolve(func(s string) (string, error) { return "resolved", nil })
	require.NoError(t, err)
	assert.Equal(t, "resolved", out.Token)
	assert.Equal(t, "{{token}}", c.Token)
}

func TestApply_OAuth2(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	config := &Config{Type: TypeOAuth2, TokenURL: server.URL, ClientID: "client", ClientSecret: "secret"}
	cache := oauth2.NewTokenCache()

	for i := 0; i < 2; i++ {
		headers := map[string]string{}
		require.NoError(t, Apply(context.Background(), config, headers, oauth2.WithCache(cache)))
		assert.Equal(t, "Bearer tok", headers["Authorization"])
	}
	assert.Equal(t, int32(1), calls.Load())
}
