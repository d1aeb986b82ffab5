package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ProfileStore {
	t.Helper()
	return NewProfileStore(Paths{Base: t.TempDir()})
}

func TestProfileStore_EnsureDefault(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.EnsureDefault())
	require.NoError(t, store.EnsureDefault())

	profile, err := store.Get(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), profile.Settings)
	assert.True(t, profile.Active)

	info, err := os.Stat(store.Paths().ConfigFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestProfileStore_Create(t *testing.T) {
	tests := []struct {
		name     string
		existing bool
		force    bool
		wantErr  error
	}{
		{name: "new profile"},
		{name: "existing profile without force", existing: true, wantErr: ErrProfileExists},
		{name: "existing profile with force", existing: true, force: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			if tt.existing {
				_, err := store.Create("staging", Settings{}, false, false)
				require.NoError(t, err)
			}

			profile, err := store.Create("staging", Settings{APIBaseURL: "https://apis.example.com/"}, tt.force, false)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "https://apis.example.com", profile.Settings.APIBaseURL)
			assert.Equal(t, "https://auth.vantagecompute.ai", profile.Settings.OIDCBaseURL)
			assert.Equal(t, 300, profile.Settings.OIDCMaxPollTime)
		})
	}
}

func TestProfileStore_CreateInvalidName(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("bad.name", Settings{}, false, false)
	assert.Error(t, err)
}

func TestProfileStore_ActivateAndList(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureDefault())

	_, err := store.Create("prod", Settings{}, false, true)
	require.NoError(t, err)
	assert.Equal(t, "prod", store.Active())

	profiles, err := store.List()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "default", profiles[0].Name)
	assert.False(t, profiles[0].Active)
	assert.Equal(t, "prod", profiles[1].Name)
	assert.True(t, profiles[1].Active)

	assert.ErrorIs(t, store.Activate("missing"), ErrProfileNotFound)
}

func TestProfileStore_Update(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("dev", Settings{}, false, false)
	require.NoError(t, err)

	profile, err := store.Update("dev", Settings{OIDCClientID: "cli", OIDCMaxPollTime: 60})
	require.NoError(t, err)
	assert.Equal(t, "cli", profile.Settings.OIDCClientID)
	assert.Equal(t, 60, profile.Settings.OIDCMaxPollTime)
	assert.Equal(t, "https://apis.vantagecompute.ai", profile.Settings.APIBaseURL)

	_, err = store.Update("missing", Settings{})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileStore_Delete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureDefault())
	_, err := store.Create("dev", Settings{}, false, true)
	require.NoError(t, err)

	tokenDir := store.Paths().TokenCacheDir("dev")
	require.NoError(t, os.MkdirAll(tokenDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(tokenDir, "access.token"), []byte("x"), 0o600))

	assert.ErrorIs(t, store.Delete(DefaultProfile, false), ErrDefaultProfile)

	require.NoError(t, store.Delete("dev", false))
	assert.NoDirExists(t, tokenDir)
	assert.Equal(t, DefaultProfile, store.Active())

	assert.ErrorIs(t, store.Delete("dev", false), ErrProfileNotFound)
}

func TestProfileStore_SettingsEnvOverrides(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureDefault())

	t.Setenv(EnvBaseAPIURL, "http://localhost:8080/")

	settings, err := store.Settings(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", settings.APIBaseURL)
	assert.Equal(t, "http://localhost:8080/cluster/graphql", settings.GraphQLURL())
	assert.Equal(t, "http://localhost:8080/sos/graphql", settings.SupportGraphQLURL())
}

func TestProfileStore_Clear(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureDefault())

	require.NoError(t, store.Clear())
	assert.NoDirExists(t, store.Paths().Base)
}

func TestSettings_DerivedURLs(t *testing.T) {
	settings := DefaultSettings()

	assert.Equal(t, "auth.vantagecompute.ai/realms/vantage", settings.OIDCDomain())
	assert.Equal(t, "https://auth.vantagecompute.ai/realms/vantage/protocol/openid-connect/token", settings.OIDCTokenURL())
	assert.Equal(t, "https://auth.vantagecompute.ai/realms/vantage/device", settings.OIDCDeviceURL())
	assert.Equal(t, "https://app.vantagecompute.ai", settings.VantageURL())
	assert.True(t, settings.SupportsCloud("localhost"))
	assert.False(t, settings.SupportsCloud("mars"))
}
