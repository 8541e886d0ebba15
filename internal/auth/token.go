// Package auth builds the OAuth2 token source used for Microsoft Graph.
//
// Tokens are only read, never written: either a raw access token or a token
// file in the golang.org/x/oauth2 Token JSON shape, e.g. produced by an
// interactive login tool. With a client ID the token file's refresh token is
// used against the Azure AD endpoint once the access token expires.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultTenant accepts personal and work accounts.
const DefaultTenant = "common"

// DefaultScopes grants read access to OneNote plus refresh tokens.
var DefaultScopes = []string{"Notes.Read", "offline_access"}

var (
	// ErrNoCredentials is returned when neither a token nor a token file is configured.
	ErrNoCredentials = errors.New("no credentials: set an access token or a token file")

	// ErrTokenExpired is returned for an expired token that cannot be refreshed.
	ErrTokenExpired = errors.New("token expired and no client id configured for refresh")
)

// Config selects the credential source.
type Config struct {
	AccessToken  string
	TokenFile    string
	ClientID     string
	ClientSecret string
	Tenant       string
	Scopes       []string
}

// TokenSource returns a token source for cfg. An access token wins over a
// token file.
func TokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	if cfg.AccessToken != "" {
		log.Debug().Msg("Using static access token")
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		}), nil
	}

	if cfg.TokenFile == "" {
		return nil, ErrNoCredentials
	}

	tok, err := ReadTokenFile(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	if cfg.ClientID == "" {
		if !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now()) {
			return nil, fmt.Errorf("%s: %w", cfg.TokenFile, ErrTokenExpired)
		}
		log.Debug().Str("token_file", cfg.TokenFile).Msg("Using token file without refresh")
		return oauth2.StaticTokenSource(tok), nil
	}

	oauthCfg := OAuthConfig(cfg)
	log.Debug().
		Str("token_file", cfg.TokenFile).
		Str("tenant", tenant(cfg)).
		Msg("Using refreshable token")
	return oauth2.ReuseTokenSource(tok, oauthCfg.TokenSource(ctx, tok)), nil
}

// OAuthConfig returns the Azure AD OAuth2 configuration for cfg.
func OAuthConfig(cfg Config) *oauth2.Config {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint(tenant(cfg)),
		Scopes:       scopes,
	}
}

// ReadTokenFile parses an oauth2.Token JSON file.
func ReadTokenFile(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds neither access nor refresh token", path)
	}
	return &tok, nil
}

func tenant(cfg Config) string {
	if cfg.Tenant == "" {
		return DefaultTenant
	}
	return cfg.Tenant
}
