// Package auth adds credentials to suite requests.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/auth/oauth2"
)

type Type string

const (
	TypeBasic  Type = "basic"
	TypeBearer Type = "bearer"
	TypeAPIKey Type = "apiKey"
	TypeOAuth2 Type = "oauth2"
)

// Config is the auth block of a suite or case.
type Config struct {
	Type Type `yaml:"type"`

	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	Token string `yaml:"token,omitempty"`

	// apiKey: Header defaults to X-API-Key.
	Header string `yaml:"header,omitempty"`
	Key    string `yaml:"key,omitempty"`

	TokenURL     string   `yaml:"tokenUrl,omitempty"`
	ClientID     string   `yaml:"clientId,omitempty"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
	GrantType    string   `yaml:"grantType,omitempty"`
}

func (c *Config) Validate() error {
	switch c.Type {
	case TypeBasic:
		if c.Username == "" {
			return fmt.Errorf("basic auth requires username")
		}
	case TypeBearer:
		if c.Token == "" {
			return fmt.Errorf("bearer auth requires token")
		}
	case TypeAPIKey:
		if c.Key == "" {
			return fmt.Errorf("apiKey auth requires key")
		}
	case TypeOAuth2:
		return c.oauth2Config().Validate()
	default:
		return fmt.Errorf("unknown auth type %q", c.Type)
	}
	return nil
}

// Resolve returns a copy with every string field passed through resolve.
func (c *Config) Resolve(resolve func(string) (string, error)) (*Config, error) {
	out := *c
	fields := []*string{&out.Username, &out.Password, &out.Token, &out.Header, &out.Key,
		&out.TokenURL, &out.ClientID, &out.ClientSecret}
	for _, f := range fields {
		if !strings.Contains(*f, "{{") {
			continue
		}
		v, err := resolve(*f)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		*f = v
	}
	out.Scopes = append([]string(nil), c.Scopes...)
	return &out, nil
}

func (c *Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		TokenURL:     c.TokenURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.Scopes,
		Username:     c.Username,
		Password:     c.Password,
		GrantType:    oauth2.GrantType(c.GrantType),
	}
}

// Apply sets the credential headers on headers. Headers already present
// are left alone. OAuth2 tokens are fetched through opts' provider options.
func Apply(ctx context.Context, c *Config, headers map[string]string, opts ...oauth2.Option) error {
	if c == nil {
		return nil
	}

	set := func(k, v string) {
		for existing := range headers {
			if strings.EqualFold(existing, k) {
				return
			}
		}
		headers[k] = v
	}

	switch c.Type {
	case TypeBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		set("Authorization", "Basic "+creds)
	case TypeBearer:
		set("Authorization", "Bearer "+c.Token)
	case TypeAPIKey:
		header := c.Header
		if header == "" {
			header = "X-API-Key"
		}
		set(header, c.Key)
	case TypeOAuth2:
		token, err := oauth2.NewProvider(c.oauth2Config(), opts...).Token(ctx)
		if err != nil {
			return err
		}
		set("Authorization", token.AuthorizationHeader())
	default:
		return fmt.Errorf("unknown auth type %q", c.Type)
	}
	return nil
}
