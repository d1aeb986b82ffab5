package config

import (
	"os"
	"path/filepath"
)

// EnvHome overrides the base directory, mostly for tests and CI
const EnvHome = "VANTAGE_CLI_HOME"

// Paths locates every file the CLI keeps on disk
type Paths struct {
	Base string
}

// DefaultPaths returns the paths rooted at $VANTAGE_CLI_HOME or ~/.vantage-cli
func DefaultPaths() (Paths, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return Paths{Base: dir}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}

	return Paths{Base: filepath.Join(home, ".vantage-cli")}, nil
}

func (p Paths) ConfigFile() string {
	return filepath.Join(p.Base, "config.json")
}

func (p Paths) ActiveProfileFile() string {
	return filepath.Join(p.Base, "active_profile")
}

func (p Paths) DeploymentsFile() string {
	return filepath.Join(p.Base, "deployments.json")
}

func (p Paths) CloudsFile() string {
	return filepath.Join(p.Base, "clouds.json")
}

func (p Paths) CredentialsFile() string {
	return filepath.Join(p.Base, "credentials.yaml")
}

// TokenCacheDir returns the directory holding the tokens of a profile
func (p Paths) TokenCacheDir(profile string) string {
	return filepath.Join(p.Base, "token_cache", profile)
}

// AppOverridesFile returns the first existing apps.{yaml,yml,toml,json}
// file, or an empty string when there is none.
func (p Paths) AppOverridesFile() string {
	for _, ext := range []string{".yaml", ".yml", ".toml", ".json"} {
		path := filepath.Join(p.Base, "apps"+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
