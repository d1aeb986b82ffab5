package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"golang.org/x/oauth2"
)

// Authenticator logs a profile in and hands out fresh access tokens
type Authenticator struct {
	settings *config.Settings
	cache    *Cache
	http     *http.Client
	now      func() time.Time
}

func New(settings *config.Settings, cache *Cache) *Authenticator {
	return &Authenticator{
		settings: settings,
		cache:    cache,
		http:     &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
	}
}

// WithHTTPClient replaces the client used to reach the identity provider
func (a *Authenticator) WithHTTPClient(c *http.Client) *Authenticator {
	a.http = c
	return a
}

func (a *Authenticator) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: a.settings.OIDCClientID,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: a.settings.OIDCDeviceURL(),
			TokenURL:      a.settings.OIDCTokenURL(),
			AuthStyle:     oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid", "email", "profile"},
	}
}

func (a *Authenticator) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.http)
}

// Login runs the device authorization flow. prompt is called once with the
// verification URL the user has to open.
func (a *Authenticator) Login(ctx context.Context, prompt func(*oauth2.DeviceAuthResponse)) (*Persona, error) {
	ctx = a.context(ctx)
	cfg := a.oauth2Config()

	device, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, &vantage.Abort{
			Subject:    "COULD NOT RETRIEVE TOKEN",
			Message:    "There was a problem retrieving a device verification code from the auth provider.",
			LogMessage: fmt.Sprintf("device authorization failed: %v", err),
			Err:        err,
		}
	}

	prompt(device)

	maxPoll := time.Duration(a.settings.OIDCMaxPollTime) * time.Second
	pollCtx, cancel := context.WithTimeout(ctx, maxPoll)
	defer cancel()

	token, err := cfg.DeviceAccessToken(pollCtx, device)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || pollCtx.Err() != nil {
			return nil, &vantage.Abort{
				Subject:    "TIMED OUT",
				Message:    "Login process was not completed in time. Please try again.",
				LogMessage: "timed out while waiting for user to complete login",
				Err:        err,
			}
		}
		return nil, &vantage.Abort{
			Subject:    "UNEXPECTED ERROR",
			Message:    "Unexpected failure retrieving access token.",
			LogMessage: fmt.Sprintf("device token request failed: %v", err),
			Err:        err,
		}
	}

	tokens := &TokenSet{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	persona, err := ParsePersona(tokens.AccessToken)
	if err != nil {
		return nil, vantage.AuthAbort(err)
	}

	if err := a.cache.Save(tokens); err != nil {
		return nil, err
	}

	log.Debug("Logged in", "email", persona.Email, "client_id", persona.ClientID)
	return persona, nil
}

// Logout forgets the cached tokens
func (a *Authenticator) Logout() error {
	return a.cache.Clear()
}

// Persona returns the identity of the cached token, refreshing it first
// when it is about to expire
func (a *Authenticator) Persona(ctx context.Context) (*Persona, error) {
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		return nil, err
	}

	persona, err := ParsePersona(token.AccessToken)
	if err != nil {
		return nil, vantage.AuthAbort(err)
	}
	return persona, nil
}

// TokenSource returns a source of valid access tokens for API calls.
// Refreshed tokens are written back to the cache.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tokens, err := a.cache.Load()
	if err != nil {
		return nil, vantage.AuthAbort(err)
	}

	persona, err := ParsePersona(tokens.AccessToken)
	if err != nil {
		return nil, vantage.AuthAbort(err)
	}

	if persona.Expired(a.now()) && tokens.RefreshToken == "" {
		return nil, &vantage.Abort{
			Subject:    "TOKEN EXPIRED",
			Message:    "The access token is expired and no refresh token is available. Please log in again.",
			LogMessage: "token expired and no refresh token available",
			Err:        vantage.ErrNotLoggedIn,
		}
	}

	initial := &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       persona.ExpiresAt.Add(-ExpiryBuffer),
	}

	return &cachingSource{
		base:  a.oauth2Config().TokenSource(a.context(ctx), initial),
		cache: a.cache,
		last:  tokens.AccessToken,
	}, nil
}

// cachingSource saves every token it has not seen before
type cachingSource struct {
	base  oauth2.TokenSource
	cache *Cache

	mu   sync.Mutex
	last string
}

func (s *cachingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, &vantage.Abort{
			Subject:    "AUTHENTICATION REQUIRED",
			Message:    "Your authentication session has expired and could not be automatically refreshed. Please log in again by running `vantage login`.",
			LogMessage: fmt.Sprintf("token refresh failed: %v", err),
			Err:        err,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken != s.last {
		log.Debug("Access token refreshed")
		if err := s.cache.Save(&TokenSet{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}); err != nil {
			return nil, err
		}
		s.last = token.AccessToken
	}

	return token, nil
}
