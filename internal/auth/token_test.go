package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeToken(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTokenSource_AccessToken(t *testing.T) {
	ts, err := TokenSource(context.Background(), Config{AccessToken: "abc", TokenFile: "/does/not/exist"})
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "abc" || tok.Type() != "Bearer" {
		t.Errorf("token = %+v", tok)
	}
}

func TestTokenSource_NoCredentials(t *testing.T) {
	_, err := TokenSource(context.Background(), Config{})
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestTokenSource_TokenFile(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	path := writeToken(t, `{"access_token":"from-file","token_type":"Bearer","expiry":"`+expiry+`"}`)

	ts, err := TokenSource(context.Background(), Config{TokenFile: path})
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "from-file" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
}

func TestTokenSource_ExpiredWithoutClientID(t *testing.T) {
	path := writeToken(t, `{"access_token":"old","refresh_token":"r","expiry":"2020-01-01T00:00:00Z"}`)

	_, err := TokenSource(context.Background(), Config{TokenFile: path})
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestTokenSource_ValidTokenWithClientIDNeedsNoRefresh(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	path := writeToken(t, `{"access_token":"fresh","refresh_token":"r","expiry":"`+expiry+`"}`)

	ts, err := TokenSource(context.Background(), Config{TokenFile: path, ClientID: "app"})
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "fresh" {
		t.Errorf("AccessToken = %q, want the stored token", tok.AccessToken)
	}
}

func TestReadTokenFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: `{`, want: "parse token file"},
		{name: "empty token", body: `{}`, want: "neither access nor refresh token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTokenFile(writeToken(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}

	if _, err := ReadTokenFile(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want ErrNotExist", err)
	}
}

func TestOAuthConfig(t *testing.T) {
	cfg := OAuthConfig(Config{ClientID: "app"})

	if !strings.Contains(cfg.Endpoint.TokenURL, "/common/") {
		t.Errorf("TokenURL = %q, want common tenant", cfg.Endpoint.TokenURL)
	}
	if strings.Join(cfg.Scopes, " ") != "Notes.Read offline_access" {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}

	cfg = OAuthConfig(Config{ClientID: "app", Tenant: "contoso", Scopes: []string{"Notes.Read.All"}})
	if !strings.Contains(cfg.Endpoint.AuthURL, "/contoso/") {
		t.Errorf("AuthURL = %q, want contoso tenant", cfg.Endpoint.AuthURL)
	}
	if cfg.Scopes[0] != "Notes.Read.All" {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
}
