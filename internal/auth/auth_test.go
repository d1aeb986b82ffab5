package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"golang.org/x/oauth2"
)

func signToken(t *testing.T, email string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiresAt)},
		Email:            email,
		AZP:              "cli",
		Organization:     map[string]organization{"org-1": {ID: "org-1"}},
	})
	signed, err := token.SignedString([]byte("test"))
	require.NoError(t, err)
	return signed
}

func newAuthenticator(t *testing.T, serverURL string) (*Authenticator, *Cache) {
	t.Helper()

	settings := config.DefaultSettings()
	settings.OIDCBaseURL = serverURL
	settings.OIDCMaxPollTime = 5

	cache := NewCache(config.Paths{Base: t.TempDir()}, "default")
	return New(&settings, cache), cache
}

func TestCache_RoundTrip(t *testing.T) {
	cache := NewCache(config.Paths{Base: t.TempDir()}, "dev")

	_, err := cache.Load()
	assert.ErrorIs(t, err, vantage.ErrNotLoggedIn)

	require.NoError(t, cache.Save(&TokenSet{AccessToken: "a", RefreshToken: "r"}))

	tokens, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, &TokenSet{AccessToken: "a", RefreshToken: "r"}, tokens)

	info, err := os.Stat(filepath.Join(cache.Dir(), accessTokenFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, cache.Clear())
	assert.NoDirExists(t, cache.Dir())
}

func TestParsePersona(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	persona, err := ParsePersona(signToken(t, "ada@example.com", expires))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", persona.Email)
	assert.Equal(t, "cli", persona.ClientID)
	assert.Equal(t, "org-1", persona.OrgID)
	assert.True(t, persona.ExpiresAt.Equal(expires))

	_, err = ParsePersona("not-a-jwt")
	assert.Error(t, err)
}

func TestPersona_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "valid", expires: now.Add(time.Hour), want: false},
		{name: "inside buffer", expires: now.Add(30 * time.Second), want: true},
		{name: "past", expires: now.Add(-time.Minute), want: true},
		{name: "no exp claim", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Persona{ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, p.Expired(now))
		})
	}
}

func TestAuthenticator_Login(t *testing.T) {
	var access string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/realms/vantage/device":
			assert.Equal(t, "default", r.Form.Get("client_id"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"device_code":               "dev-code",
				"user_code":                 "ABCD",
				"verification_uri":          "https://auth.example.com/device",
				"verification_uri_complete": "https://auth.example.com/device?code=ABCD",
				"expires_in":                60,
				"interval":                  1,
			})
		case "/realms/vantage/protocol/openid-connect/token":
			assert.Equal(t, "dev-code", r.Form.Get("device_code"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  access,
				"refresh_token": "refresh-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	access = signToken(t, "ada@example.com", time.Now().Add(time.Hour))
	authenticator, cache := newAuthenticator(t, server.URL)

	var prompted string
	persona, err := authenticator.Login(context.Background(), func(d *oauth2.DeviceAuthResponse) {
		prompted = d.VerificationURIComplete
	})
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/device?code=ABCD", prompted)
	assert.Equal(t, "ada@example.com", persona.Email)

	tokens, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, access, tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
}

func TestAuthenticator_TokenSourceRefreshes(t *testing.T) {
	fresh := signToken(t, "ada@example.com", time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  fresh,
			"refresh_token": "refresh-2",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	authenticator, cache := newAuthenticator(t, server.URL)
	stale := signToken(t, "ada@example.com", time.Now().Add(10*time.Second))
	require.NoError(t, cache.Save(&TokenSet{AccessToken: stale, RefreshToken: "refresh-1"}))

	persona, err := authenticator.Persona(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", persona.Email)

	tokens, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, fresh, tokens.AccessToken)
	assert.Equal(t, "refresh-2", tokens.RefreshToken)
}

func TestAuthenticator_TokenSourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		tokens  *TokenSet
		subject string
	}{
		{name: "not logged in", subject: "AUTHENTICATION ERROR"},
		{name: "garbage token", tokens: &TokenSet{AccessToken: "garbage"}, subject: "AUTHENTICATION ERROR"},
		{
			name:    "expired without refresh token",
			tokens:  &TokenSet{AccessToken: signToken(t, "a@b.c", time.Now().Add(-time.Hour))},
			subject: "TOKEN EXPIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authenticator, cache := newAuthenticator(t, "http://127.0.0.1:0")
			if tt.tokens != nil {
				require.NoError(t, cache.Save(tt.tokens))
			}

			_, err := authenticator.TokenSource(context.Background())
			var abort *vantage.Abort
			require.ErrorAs(t, err, &abort)
			assert.Equal(t, tt.subject, abort.Subject)
		})
	}
}
