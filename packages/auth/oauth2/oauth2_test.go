package oauth2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_PasswordGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "ana", r.PostForm.Get("username"))
		assert.Equal(t, "companies:read employees:write", r.PostForm.Get("scope"))
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	}))
	defer server.Close()

	p := NewProvider(&Config{
		TokenURL:  server.URL,
		Username:  "ana",
		Password:  "pw",
		Scopes:    []string{"companies:read", "employees:write"},
		GrantType: Password,
	}, WithCache(NewTokenCache()))

	token, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", token.AuthorizationHeader())
	assert.False(t, token.IsExpired())
}

func TestProvider_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client"}`))
	}))
	defer server.Close()

	_, err := NewProvider(&Config{TokenURL: server.URL, ClientID: "x"}, WithCache(NewTokenCache())).Token(context.Background())
	assert.ErrorContains(t, err, "invalid_client - unknown client")
}

func TestProvider_RefreshesExpiredToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"fresh","expires_in":60}`))
	}))
	defer server.Close()

	config := &Config{TokenURL: server.URL, ClientID: "c"}
	cache := NewTokenCache()
	p := NewProvider(config, WithCache(cache))
	cache.Set(p.cacheKey(), &Token{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Minute)})

	token, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{ClientID: "c"}).Validate())
	assert.Error(t, (&Config{TokenURL: "http://auth.test", GrantType: "implicit"}).Validate())
	assert.Error(t, (&Config{TokenURL: "http://auth.test", GrantType: Password}).Validate())
	assert.NoError(t, (&Config{TokenURL: "http://auth.test", ClientID: "c"}).Validate())
}
