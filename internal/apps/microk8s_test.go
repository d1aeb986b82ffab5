package apps

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/deployments"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/internal/workflows"
	"github.com/vantagecompute/vantage-cli/pkg/helm"
	"github.com/vantagecompute/vantage-cli/pkg/manifests"
	"helm.sh/helm/v3/pkg/release"
)

const readyStatus = `microk8s:
  running: true
addons:
  - name: dns
    status: enabled
  - name: hostpath-storage
    status: enabled
  - name: metallb
    status: enabled
  - name: helm3
    status: enabled
  - name: ingress
    status: disabled
`

type fakeNamespaces struct {
	existing map[string]bool
	applied  []*manifests.ManifestConfig
	deleted  []string
}

func (f *fakeNamespaces) NamespaceExists(_ context.Context, ns string) (bool, error) {
	return f.existing[ns], nil
}

func (f *fakeNamespaces) EnsureNamespaceExists(_ context.Context, ns string) error {
	f.existing[ns] = true
	return nil
}

func (f *fakeNamespaces) DeleteNamespace(_ context.Context, ns string) error {
	f.deleted = append(f.deleted, ns)
	delete(f.existing, ns)
	return nil
}

func (f *fakeNamespaces) ApplyManifests(_ context.Context, config *manifests.ManifestConfig) error {
	f.applied = append(f.applied, config)
	return nil
}

type fakeReleases struct {
	mu          sync.Mutex
	existing    map[string]bool
	installed   []*helm.ComponentConfig
	upgraded    []string
	uninstalled []string
}

func (f *fakeReleases) ReleaseExists(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[name], nil
}

func (f *fakeReleases) InstallRelease(config *helm.ComponentConfig) (*release.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed = append(f.installed, config)
	return &release.Release{Name: config.Release.Name, Version: 1}, nil
}

func (f *fakeReleases) DeployRelease(config *helm.ComponentConfig) (*release.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upgraded = append(f.upgraded, config.Release.Name)
	return &release.Release{Name: config.Release.Name, Version: 2}, nil
}

type fakeKube struct {
	namespaces *fakeNamespaces
	releases   *fakeReleases
}

func newFakeKube() *fakeKube {
	return &fakeKube{
		namespaces: &fakeNamespaces{existing: map[string]bool{}},
		releases:   &fakeReleases{existing: map[string]bool{}},
	}
}

func (f *fakeKube) connector() KubeConnector {
	return func(context.Context, process.Runner) (*Kube, error) {
		return &Kube{
			Namespaces: f.namespaces,
			Releases: func(string) (workflows.ReleaseClient, error) {
				return f.releases, nil
			},
			Uninstall: func(namespace, name string) error {
				f.releases.uninstalled = append(f.releases.uninstalled, namespace+"/"+name)
				return nil
			},
		}, nil
	}
}

func newKubeRequest(t *testing.T, status string) (*Request, *process.FakeRunner) {
	t.Helper()

	runner := process.NewFakeRunner().On("microk8s status", process.FakeResponse{Stdout: status})
	req := newTestRequest(t, runner)

	store := deployments.NewStore(filepath.Join(t.TempDir(), "deployments.json"))
	record, err := store.Create(&deployments.Deployment{
		Name:        "test",
		AppName:     "test",
		ClusterName: "hpc",
		ClusterData: map[string]interface{}{"clientId": DevClientID},
	})
	require.NoError(t, err)

	req.Store = store
	req.Deployment = record
	return req, runner
}

func TestCheckMicroK8s(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		subject string
	}{
		{name: "ready", status: readyStatus},
		{name: "not running", status: "microk8s:\n  running: false\n", subject: "MICROK8S NOT RUNNING"},
		{
			name:    "missing addons",
			status:  "microk8s:\n  running: true\naddons:\n  - name: dns\n    status: enabled\n",
			subject: "MICROK8S ADDONS REQUIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := process.NewFakeRunner().On("microk8s status", process.FakeResponse{Stdout: tt.status})

			err := checkMicroK8s(context.Background(), runner, requiredAddons)
			if tt.subject == "" {
				assert.NoError(t, err)
				return
			}

			var abort *vantage.Abort
			require.ErrorAs(t, err, &abort)
			assert.Equal(t, tt.subject, abort.Subject)
		})
	}
}

func TestCheckMicroK8s_MissingBinary(t *testing.T) {
	runner := process.NewFakeRunner()
	runner.Missing["microk8s"] = true

	err := checkMicroK8s(context.Background(), runner, requiredAddons)
	var abort *vantage.Abort
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "MICROK8S REQUIRED", abort.Subject)
}

func TestSlurmMicroK8s_Deploy(t *testing.T) {
	kube := newFakeKube()
	kube.releases.existing["prometheus"] = true

	app := NewSlurmMicroK8s()
	app.connector = kube.connector()

	req, _ := newKubeRequest(t, readyStatus)
	require.NoError(t, os.MkdirAll(filepath.Join(req.Home, ".ssh"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(req.Home, ".ssh", "id_ed25519.pub"), []byte("ssh-ed25519 AAAA test\n"), 0o600))

	require.NoError(t, app.Deploy(context.Background(), req))

	var installed []string
	for _, c := range kube.releases.installed {
		installed = append(installed, c.Release.Namespace+"/"+c.Release.Name)
	}
	assert.Equal(t, []string{
		"cert-manager/cert-manager",
		"default/slurm-operator-crds",
		"slinky/slurm-operator",
		"slurm/slurm",
	}, installed)
	assert.Equal(t, []string{"prometheus"}, kube.releases.upgraded)

	slurm := kube.releases.installed[3]
	assert.Equal(t, DevClientID, slurm.Release.Values["clusterName"])
	assert.Equal(t, "0.4.0", slurm.Chart.Version)

	certManager := kube.releases.installed[0]
	assert.Equal(t, map[string]interface{}{"enabled": true}, certManager.Release.Values["crds"])

	record, err := req.Store.Get(req.Deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cert-manager", "prometheus", "slinky", "slurm"}, record.K8sNamespaces)
	assert.Equal(t, true, record.Metadata["ssh_keys_present"])

	var marked []string
	for _, applied := range kube.namespaces.applied {
		marked = append(marked, applied.Namespace)
		assert.Equal(t, req.Deployment.ID, applied.Sources[0].TemplateValues["id"])
	}
	assert.Equal(t, record.K8sNamespaces, marked)
}

func TestSlurmMicroK8s_DeployExistingNamespaces(t *testing.T) {
	kube := newFakeKube()
	kube.namespaces.existing["slurm"] = true

	app := NewSlurmMicroK8s()
	app.connector = kube.connector()

	req, _ := newKubeRequest(t, readyStatus)
	err := app.Deploy(context.Background(), req)

	var abort *vantage.Abort
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "EXISTING SLURM DEPLOYMENT", abort.Subject)
	assert.Empty(t, kube.releases.installed)
}

func TestSlurmMicroK8s_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`slurm-microk8s-localhost:
  prometheus:
    chart:
      version: 77.0.0
    release:
      namespace: monitoring
`), 0o600))

	overrides, err := config.LoadOverrides(path)
	require.NoError(t, err)

	kube := newFakeKube()
	app := NewSlurmMicroK8s()
	app.connector = kube.connector()

	req, _ := newKubeRequest(t, readyStatus)
	req.Overrides = overrides
	require.NoError(t, app.Deploy(context.Background(), req))

	prometheus := kube.releases.installed[1]
	assert.Equal(t, "prometheus", prometheus.Release.Name)
	assert.Equal(t, "monitoring", prometheus.Release.Namespace)
	assert.Equal(t, "77.0.0", prometheus.Chart.Version)
	assert.Equal(t, "kube-prometheus-stack", prometheus.Chart.Name)
}

func TestSlurmMicroK8s_Remove(t *testing.T) {
	kube := newFakeKube()
	app := NewSlurmMicroK8s()
	app.connector = kube.connector()

	req, _ := newKubeRequest(t, readyStatus)
	require.NoError(t, app.Remove(context.Background(), req))

	assert.Equal(t, []string{
		"slurm/slurm",
		"slinky/slurm-operator",
		"default/slurm-operator-crds",
		"prometheus/prometheus",
		"cert-manager/cert-manager",
	}, kube.releases.uninstalled)
	assert.Equal(t, []string{"slurm", "slinky"}, kube.namespaces.deleted)
}

func TestJupyterHubMicroK8s_Deploy(t *testing.T) {
	kube := newFakeKube()
	app := NewJupyterHubMicroK8s()
	app.connector = kube.connector()

	req, _ := newKubeRequest(t, readyStatus)
	require.NoError(t, app.Deploy(context.Background(), req))

	require.Len(t, kube.releases.installed, 1)
	hub := kube.releases.installed[0]
	assert.Equal(t, "https://hub.jupyter.org/helm-chart/", hub.Chart.RepoURL)
	assert.Equal(t, "jupyterhub", hub.Release.Namespace)
	assert.Equal(t, jupyterHubTimeout, hub.Release.Timeout)
	assert.Contains(t, hub.Release.Values, "hub")

	record, err := req.Store.Get(req.Deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"jupyterhub"}, record.K8sNamespaces)

	require.NoError(t, app.Remove(context.Background(), &Request{Deployment: record, Runner: req.Runner}))
	assert.Equal(t, []string{"jupyterhub/jupyterhub"}, kube.releases.uninstalled)
	assert.Equal(t, []string{"jupyterhub"}, kube.namespaces.deleted)
}

func TestMergedComponent(t *testing.T) {
	base := func() *helm.ComponentConfig {
		return &helm.ComponentConfig{
			Chart: &helm.ChartConfig{
				RepoURL: "https://example.com",
				Name:    "test-chart",
				Version: "1.0.0",
			},
			Release: &helm.ReleaseConfig{
				Namespace: "default",
				Name:      "test-release",
				Values: map[string]interface{}{
					"replicas": 1,
					"image":    "nginx:latest",
					"resources": map[string]interface{}{
						"requests": map[string]interface{}{
							"cpu":    "100m",
							"memory": "128Mi",
						},
					},
				},
			},
		}
	}

	tests := []struct {
		name      string
		overrides string
		want      func() *helm.ComponentConfig
	}{
		{
			name: "no overrides",
			want: base,
		},
		{
			name: "override values",
			overrides: `demo:
  test:
    release:
      values:
        replicas: 3
        resources:
          requests:
            cpu: 200m
`,
			want: func() *helm.ComponentConfig {
				c := base()
				c.Release.Values["replicas"] = 3
				c.Release.Values["resources"] = map[string]interface{}{
					"requests": map[string]interface{}{
						"cpu":    "200m",
						"memory": "128Mi",
					},
				}
				return c
			},
		},
		{
			name: "override chart version",
			overrides: `demo:
  test:
    chart:
      version: 2.0.0
`,
			want: func() *helm.ComponentConfig {
				c := base()
				c.Chart.Version = "2.0.0"
				return c
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overrides := config.NewOverrides()
			if tt.overrides != "" {
				path := filepath.Join(t.TempDir(), "apps.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.overrides), 0o600))

				var err error
				overrides, err = config.LoadOverrides(path)
				require.NoError(t, err)
			}

			got, err := mergedComponent(overrides, "demo", "test", base())
			require.NoError(t, err)
			assert.Equal(t, tt.want(), got)
		})
	}
}
