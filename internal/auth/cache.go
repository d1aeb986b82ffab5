// Package auth implements the OIDC device login and keeps the resulting
// tokens per profile.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

const (
	accessTokenFile  = "access.token"
	refreshTokenFile = "refresh.token"
)

// TokenSet is what the identity provider hands back after login
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Cache stores the tokens of one profile as two files
type Cache struct {
	dir string
}

func NewCache(paths config.Paths, profile string) *Cache {
	return &Cache{dir: paths.TokenCacheDir(profile)}
}

func (c *Cache) Dir() string {
	return c.dir
}

// Load reads the cached tokens. A missing access token is ErrNotLoggedIn.
func (c *Cache) Load() (*TokenSet, error) {
	access, err := os.ReadFile(filepath.Join(c.dir, accessTokenFile))
	if os.IsNotExist(err) {
		return nil, vantage.ErrNotLoggedIn
	} else if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	tokens := &TokenSet{AccessToken: strings.TrimSpace(string(access))}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: access token file is empty", vantage.ErrNotLoggedIn)
	}

	refresh, err := os.ReadFile(filepath.Join(c.dir, refreshTokenFile))
	if err == nil {
		tokens.RefreshToken = strings.TrimSpace(string(refresh))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read refresh token: %w", err)
	}

	return tokens, nil
}

func (c *Cache) Save(tokens *TokenSet) error {
	log.Debug("Caching tokens", "dir", c.dir)

	if err := config.WriteFileAtomic(filepath.Join(c.dir, accessTokenFile), []byte(tokens.AccessToken), 0o600); err != nil {
		return err
	}
	if tokens.RefreshToken == "" {
		return nil
	}
	return config.WriteFileAtomic(filepath.Join(c.dir, refreshTokenFile), []byte(tokens.RefreshToken), 0o600)
}

func (c *Cache) Clear() error {
	log.Debug("Clearing cached tokens", "dir", c.dir)
	return os.RemoveAll(c.dir)
}
