// Package oauth2 fetches access tokens for suites that authenticate with
// the client_credentials or password grant.
package oauth2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/http"
)

type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	Password          GrantType = "password"
	RefreshToken      GrantType = "refresh_token"
)

type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string
	Password     string
	GrantType    GrantType
}

// Validate checks that the fields the grant needs are present.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("oauth2: tokenUrl is required")
	}
	if err := http.ValidateURL(c.TokenURL); err != nil {
		return fmt.Errorf("oauth2: %w", err)
	}
	switch c.GrantType {
	case "", ClientCredentials:
		if c.ClientID == "" {
			return fmt.Errorf("oauth2: clientId is required")
		}
	case Password:
		if c.Username == "" {
			return fmt.Errorf("oauth2: username is required for the password grant")
		}
	default:
		return fmt.Errorf("oauth2: unsupported grant type %q", c.GrantType)
	}
	return nil
}

type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired reports whether the token expires within the next 30 seconds.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(30 * time.Second).After(t.ExpiresAt)
}

// AuthorizationHeader renders the token for the Authorization header.
func (t *Token) AuthorizationHeader() string {
	tokenType := t.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + t.AccessToken
}

type Provider struct {
	config *Config
	client *http.Client
	cache  *TokenCache
}

type Option func(*Provider)

// WithClient sets the client token requests are sent with.
func WithClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

func WithCache(c *TokenCache) Option {
	return func(p *Provider) {
		p.cache = c
	}
}

func NewProvider(config *Config, opts ...Option) *Provider {
	p := &Provider{
		config: config,
		cache:  SharedCache,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = http.NewClient(http.WithTimeout(30 * time.Second))
	}
	return p
}

// Token returns a cached token while it is valid. An expired token is
// refreshed when it carries a refresh token; otherwise a new one is fetched.
func (p *Provider) Token(ctx context.Context) (*Token, error) {
	key := p.cacheKey()
	cached := p.cache.Get(key)
	if cached != nil && !cached.IsExpired() {
		return cached, nil
	}

	var token *Token
	var err error
	if cached != nil && cached.RefreshToken != "" {
		token, err = p.Refresh(ctx, cached.RefreshToken)
	}
	if token == nil {
		token, err = p.fetchToken(ctx)
	}
	if err != nil {
		p.cache.Delete(key)
		return nil, err
	}

	p.cache.Set(key, token)
	return token, nil
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", p.config.TokenURL, p.config.ClientID, p.config.Username, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	if p.config.GrantType == Password {
		data.Set("grant_type", string(Password))
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	} else {
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}
	return p.doTokenRequest(ctx, data)
}

// Refresh exchanges a refresh token for a new access token.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", string(RefreshToken))
	data.Set("refresh_token", refreshToken)
	return p.doTokenRequest(ctx, data)
}

func (p *Provider) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	req := http.NewRequest("POST", p.config.TokenURL).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Accept", "application/json").
		SetBody([]byte(data.Encode()))

	if p.config.ClientID != "" && p.config.ClientSecret != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(p.config.ClientID + ":" + p.config.ClientSecret))
		req.SetHeader("Authorization", "Basic "+creds)
	}

	resp, err := p.client.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	if resp.StatusCode != 200 {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(resp.Body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, resp.BodyString())
	}

	var token Token
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}
