package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantName string
		wantVer  string
		wantErr  bool
	}{
		{
			name: "yaml",
			file: "apps.yaml",
			content: `slurm-microk8s-localhost:
  prometheus:
    chart:
      version: 77.0.0
    release:
      namespace: monitoring
`,
			wantName: "monitoring",
			wantVer:  "77.0.0",
		},
		{
			name: "toml",
			file: "apps.toml",
			content: `[slurm-microk8s-localhost.prometheus.chart]
version = "78.1.0"
`,
			wantVer: "78.1.0",
		},
		{
			name:    "json",
			file:    "apps.json",
			content: `{"slurm-microk8s-localhost": {"prometheus": {"release": {"namespace": "prom"}}}}`,
			wantName: "prom",
		},
		{
			name:    "unsupported extension",
			file:    "apps.ini",
			content: "x=1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			overrides, err := LoadOverrides(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			component, err := overrides.HelmComponent("slurm-microk8s-localhost", "prometheus")
			require.NoError(t, err)

			if tt.wantVer != "" {
				require.NotNil(t, component.Chart)
				assert.Equal(t, tt.wantVer, component.Chart.Version)
			}
			if tt.wantName != "" {
				require.NotNil(t, component.Release)
				assert.Equal(t, tt.wantName, component.Release.Namespace)
			}
		})
	}
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	overrides, err := LoadOverrides(filepath.Join(t.TempDir(), "apps.yaml"))
	require.NoError(t, err)

	component, err := overrides.HelmComponent("any", "thing")
	require.NoError(t, err)
	assert.Nil(t, component.Chart)
	assert.Nil(t, component.Release)

	assert.Equal(t, "fallback", overrides.String("any", "image", "fallback"))
	assert.Equal(t, 2, overrides.Int("any", "cpus", 2))
}

func TestOverrides_Scalars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slurm-multipass-localhost:\n  image: noble\n  cpus: 4\n"), 0o600))

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)

	assert.Equal(t, "noble", overrides.String("slurm-multipass-localhost", "image", "jammy"))
	assert.Equal(t, 4, overrides.Int("slurm-multipass-localhost", "cpus", 1))
}

func TestPaths_AppOverridesFile(t *testing.T) {
	paths := Paths{Base: t.TempDir()}
	assert.Empty(t, paths.AppOverridesFile())

	require.NoError(t, os.WriteFile(filepath.Join(paths.Base, "apps.toml"), []byte(""), 0o600))
	assert.Equal(t, filepath.Join(paths.Base, "apps.toml"), paths.AppOverridesFile())
}
