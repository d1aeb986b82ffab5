package apps

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantagecompute/vantage-cli/internal/clusters"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/deployments"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

type fakeSecrets struct {
	secret string
	err    error
	calls  int
}

func (f *fakeSecrets) ClientSecret(context.Context, string) (string, error) {
	f.calls++
	return f.secret, f.err
}

func newTestDriver(t *testing.T, apps ...App) *Driver {
	t.Helper()

	registry := NewRegistry()
	for _, app := range apps {
		require.NoError(t, registry.Register(app))
	}

	settings := config.DefaultSettings()
	return &Driver{
		Registry: registry,
		Store:    deployments.NewStore(filepath.Join(t.TempDir(), "deployments.json")),
		Settings: &settings,
		Runner:   process.NewFakeRunner(),
		Home:     t.TempDir(),
		now: func() time.Time {
			return time.Date(2025, 9, 1, 8, 30, 15, 0, time.UTC)
		},
	}
}

func TestDeploymentName(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "slurm-juju-localhost-hpc-20250102-030405", DeploymentName("slurm-juju-localhost", "hpc", at))
}

func TestDriver_Deploy(t *testing.T) {
	app := newFakeApp("demo", "localhost", "lxd")
	driver := newTestDriver(t, app)

	record, err := driver.Deploy(context.Background(), "demo", DevCluster("hpc"), DeployOptions{DevRun: true})
	require.NoError(t, err)

	assert.Equal(t, deployments.StatusActive, record.Status)
	assert.Equal(t, "demo-hpc-20250901-083015", record.Name)
	assert.Equal(t, "lxd", record.Substrate)
	assert.Equal(t, DevClientID, record.ClientID())
	assert.NotContains(t, record.ClusterData, "clientSecret")

	require.Len(t, app.deployed, 1)
	tc := app.deployed[0].TemplateContext()
	assert.Equal(t, DevClientSecret, tc.ClientSecret)
	assert.Equal(t, DevJupyterHubToken, tc.JupyterHubToken)
	assert.Equal(t, "auth.vantagecompute.ai/realms/vantage", tc.OIDCDomain)

	stored, err := driver.Store.Get(record.ID)
	require.NoError(t, err)
	assert.Equal(t, deployments.StatusActive, stored.Status)
}

func TestDriver_DeployUnknownApp(t *testing.T) {
	driver := newTestDriver(t, newFakeApp("demo", "", ""))

	_, err := driver.Deploy(context.Background(), "missing", DevCluster("hpc"), DeployOptions{DevRun: true})

	var abort *vantage.Abort
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "App 'missing' not found. Available apps: demo", abort.Message)
	assert.ErrorIs(t, err, vantage.ErrNotFound)
}

func TestDriver_DeployInvalidCluster(t *testing.T) {
	driver := newTestDriver(t, newFakeApp("demo", "", ""))

	tests := []struct {
		name    string
		cluster *clusters.Cluster
	}{
		{name: "nil cluster"},
		{name: "missing name", cluster: &clusters.Cluster{ClientID: "abc"}},
		{name: "missing client id", cluster: &clusters.Cluster{Name: "hpc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := driver.Deploy(context.Background(), "demo", tt.cluster, DeployOptions{})
			var abort *vantage.Abort
			require.ErrorAs(t, err, &abort)
			assert.Equal(t, "INVALID CLUSTER", abort.Subject)
		})
	}
}

func TestDriver_ResolveSecret(t *testing.T) {
	tests := []struct {
		name      string
		cluster   string
		api       *fakeSecrets
		env       string
		devRun    bool
		want      string
		wantCalls int
		wantAbort bool
	}{
		{name: "from cluster", cluster: "inline", api: &fakeSecrets{secret: "api"}, want: "inline"},
		{name: "from api", api: &fakeSecrets{secret: "api"}, want: "api", wantCalls: 1},
		{name: "api error falls back to env", api: &fakeSecrets{err: errors.New("403")}, env: "env", want: "env", wantCalls: 1},
		{name: "dev run skips api", api: &fakeSecrets{secret: "api"}, env: "env", devRun: true, want: "env"},
		{name: "nothing available", api: &fakeSecrets{}, wantCalls: 1, wantAbort: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvClientSecret, tt.env)

			driver := newTestDriver(t)
			driver.Secrets = tt.api

			cluster := &clusters.Cluster{Name: "hpc", ClientID: "abc", ClientSecret: tt.cluster}
			err := driver.resolveSecret(context.Background(), cluster, tt.devRun)
			assert.Equal(t, tt.wantCalls, tt.api.calls)

			if tt.wantAbort {
				var abort *vantage.Abort
				require.ErrorAs(t, err, &abort)
				assert.Equal(t, "CLIENT SECRET REQUIRED", abort.Subject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cluster.ClientSecret)
		})
	}
}

func TestDriver_DeployFailure(t *testing.T) {
	app := newFakeApp("demo", "", "")
	app.deployErr = errors.New("launch failed")
	driver := newTestDriver(t, app)

	record, err := driver.Deploy(context.Background(), "demo", DevCluster("hpc"), DeployOptions{DevRun: true})

	var abort *vantage.Abort
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "DEPLOYMENT FAILED", abort.Subject)
	require.NotNil(t, record)
	assert.Equal(t, deployments.StatusFailed, record.Status)

	failed, err := driver.Store.List(deployments.Filter{Status: deployments.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestDriver_Remove(t *testing.T) {
	tests := []struct {
		name       string
		keepRecord bool
	}{
		{name: "drop record"},
		{name: "keep record", keepRecord: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newFakeApp("demo", "", "")
			driver := newTestDriver(t, app)

			record, err := driver.Deploy(context.Background(), "demo", DevCluster("hpc"), DeployOptions{DevRun: true})
			require.NoError(t, err)

			removed, err := driver.Remove(context.Background(), record.Name, tt.keepRecord)
			require.NoError(t, err)
			assert.Equal(t, deployments.StatusDeleted, removed.Status)

			require.Len(t, app.removed, 1)
			assert.Equal(t, DevClientID, app.removed[0].Cluster.ClientID)
			assert.Equal(t, DevJupyterHubToken, app.removed[0].Cluster.JupyterHubToken())

			_, err = driver.Store.Get(record.ID)
			if tt.keepRecord {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, deployments.ErrNotFound)
			}
		})
	}
}

func TestDriver_RemoveFailure(t *testing.T) {
	app := newFakeApp("demo", "", "")
	app.removeErr = errors.New("model busy")
	driver := newTestDriver(t, app)

	record, err := driver.Deploy(context.Background(), "demo", DevCluster("hpc"), DeployOptions{DevRun: true})
	require.NoError(t, err)

	_, err = driver.Remove(context.Background(), record.ID, false)
	require.Error(t, err)

	stored, err := driver.Store.Get(record.ID)
	require.NoError(t, err)
	assert.Equal(t, deployments.StatusFailed, stored.Status)
}

func TestDriver_RemoveMissing(t *testing.T) {
	driver := newTestDriver(t)

	_, err := driver.Remove(context.Background(), "nope", false)
	var abort *vantage.Abort
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "DEPLOYMENT NOT FOUND", abort.Subject)
}

func TestDriver_Cleanup(t *testing.T) {
	ok := newFakeApp("ok", "", "")
	broken := newFakeApp("broken", "", "")
	broken.deployErr = errors.New("boom")
	driver := newTestDriver(t, ok, broken)

	active, err := driver.Deploy(context.Background(), "ok", DevCluster("a"), DeployOptions{DevRun: true})
	require.NoError(t, err)
	_, err = driver.Deploy(context.Background(), "broken", DevCluster("b"), DeployOptions{DevRun: true})
	require.Error(t, err)

	removed, err := driver.Cleanup()
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "broken", removed[0].AppName)

	remaining, err := driver.Store.List(deployments.Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, active.ID, remaining[0].ID)
}

func TestDriver_DeploySameSecond(t *testing.T) {
	app := newFakeApp("demo", "", "")
	driver := newTestDriver(t, app)

	first, err := driver.Deploy(context.Background(), "demo", DevCluster("hpc"), DeployOptions{DevRun: true})
	require.NoError(t, err)

	_, err = driver.Deploy(context.Background(), "demo", DevCluster("hpc"), DeployOptions{DevRun: true})
	var abort *vantage.Abort
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "DEPLOYMENT EXISTS", abort.Subject)
	assert.Len(t, app.deployed, 1)

	stored, err := driver.Store.Get(first.Name)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
}
