package clouds

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func newTestCredentialStore(t *testing.T) *CredentialStore {
	t.Helper()
	dir := t.TempDir()
	s := NewCredentialStore(filepath.Join(dir, "credentials.yaml"), newTestStore(t))
	s.now = func() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestCredentialStore_Create(t *testing.T) {
	s := newTestCredentialStore(t)

	first, err := s.Create("prod", "aws", map[string]interface{}{"access_key_id": "AKIA", "secret_access_key": "s3cr3t"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAWS, first.Provider)
	assert.True(t, first.Default)
	assert.Equal(t, "2025-09-01T12:00:00Z", first.CreatedAt)

	second, err := s.Create("dev", "aws", nil)
	require.NoError(t, err)
	assert.False(t, second.Default)

	_, err = s.Create("prod", "aws", nil)
	assert.ErrorIs(t, err, vantage.ErrAlreadyExists)

	_, err = s.Create("prod", "mars", nil)
	assert.ErrorIs(t, err, vantage.ErrNotFound)

	info, err := os.Stat(s.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(s.path)
	require.NoError(t, err)
	var doc map[string]map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, "prod", doc["credentials"][first.ID]["name"])
}

func TestCredentialStore_GetListDelete(t *testing.T) {
	s := newTestCredentialStore(t)

	aws, err := s.Create("main", "aws", map[string]interface{}{"region": "us-west-2"})
	require.NoError(t, err)
	gcp, err := s.Create("main", "gcp", nil)
	require.NoError(t, err)

	got, err := s.Get(aws.ID)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", got.Data["region"])

	_, err = s.Get("main")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, vantage.ErrNotFound)

	list, err := s.List("")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "aws", list[0].Cloud)

	list, err = s.List("gcp")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, gcp.ID, list[0].ID)

	deleted, err := s.Delete(gcp.ID)
	require.NoError(t, err)
	assert.Equal(t, "gcp", deleted.Cloud)

	_, err = s.Get(gcp.ID)
	assert.ErrorIs(t, err, vantage.ErrNotFound)

	got, err = s.Get("main")
	require.NoError(t, err)
	assert.Equal(t, aws.ID, got.ID)
}

func TestCredentialStore_UpdateDefault(t *testing.T) {
	s := newTestCredentialStore(t)

	prod, err := s.Create("prod", "aws", nil)
	require.NoError(t, err)
	dev, err := s.Create("dev", "aws", nil)
	require.NoError(t, err)
	other, err := s.Create("lab", "gcp", nil)
	require.NoError(t, err)

	name := "development"
	updated, err := s.Update(dev.ID, CredentialChanges{
		Name:       &name,
		Data:       map[string]interface{}{"token": "abc"},
		SetDefault: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "development", updated.Name)
	assert.True(t, updated.Default)

	def, err := s.Default("aws")
	require.NoError(t, err)
	assert.Equal(t, dev.ID, def.ID)

	old, err := s.Get(prod.ID)
	require.NoError(t, err)
	assert.False(t, old.Default)

	gcp, err := s.Get(other.ID)
	require.NoError(t, err)
	assert.True(t, gcp.Default)

	_, err = s.Update("missing", CredentialChanges{})
	assert.ErrorIs(t, err, vantage.ErrNotFound)
}

func TestCredential_Redacted(t *testing.T) {
	c := Credential{Name: "prod", Data: map[string]interface{}{"secret": "s3cr3t", "key": "AKIA"}}

	r := c.Redacted()
	assert.Equal(t, map[string]interface{}{"secret": "***", "key": "***"}, r.Data)
	assert.Equal(t, "s3cr3t", c.Data["secret"])
	assert.Equal(t, []string{"key", "secret"}, c.DataKeys())
}
