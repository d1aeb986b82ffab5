//go:build integration

package helm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"helm.sh/helm/v3/pkg/release"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

type trackedRelease struct {
	client *Client
	name   string
}

// HelmTestSuite deploys real charts against the cluster in KUBECONFIG and
// uninstalls everything it touched on teardown
type HelmTestSuite struct {
	suite.Suite
	ConfigFlags *genericclioptions.ConfigFlags
	releases    []trackedRelease
}

func (s *HelmTestSuite) SetupSuite() {
	s.ConfigFlags = genericclioptions.NewConfigFlags(true)
}

func (s *HelmTestSuite) TearDownSuite() {
	for _, r := range s.releases {
		s.T().Logf("Cleaning up release: %s", r.name)
		_ = r.client.UninstallRelease(r.name)
	}
}

// prepare removes any leftover release and tracks it for cleanup
func (s *HelmTestSuite) prepare(config *ComponentConfig) *Client {
	client, err := NewClient(s.ConfigFlags, config.Release.Namespace)
	require.NoError(s.T(), err)

	s.releases = append(s.releases, trackedRelease{client: client, name: config.Release.Name})

	exists, err := client.ReleaseExists(config.Release.Name)
	require.NoError(s.T(), err)
	if exists {
		require.NoError(s.T(), client.UninstallRelease(config.Release.Name))
		time.Sleep(5 * time.Second)
	}

	return client
}

func (s *HelmTestSuite) deploy(client *Client, config *ComponentConfig) *release.Release {
	_, err := client.DeployRelease(config)
	require.NoError(s.T(), err)

	deployed, err := client.GetRelease(config.Release.Name)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "deployed", deployed.Info.Status.String())
	require.Equal(s.T(), config.Release.Namespace, deployed.Namespace)

	return deployed
}

func (s *HelmTestSuite) TestDeployFromRepository() {
	config := &ComponentConfig{
		Chart: &ChartConfig{
			RepoURL: "https://hub.jupyter.org/helm-chart/",
			Name:    "jupyterhub",
		},
		Release: &ReleaseConfig{
			Namespace: "test-vantage-helm-repo",
			Name:      "test-jupyterhub",
			Timeout:   300 * time.Second,
			Values: map[string]interface{}{
				"proxy": map[string]interface{}{
					"service": map[string]interface{}{"type": "ClusterIP"},
				},
			},
		},
	}

	client := s.prepare(config)
	deployed := s.deploy(client, config)
	s.Equal(1, deployed.Version)

	// unchanged values must not roll a new revision
	again := s.deploy(client, config)
	s.Equal(1, again.Version)
}

func (s *HelmTestSuite) TestDeployFromOCI() {
	config := &ComponentConfig{
		Chart: &ChartConfig{
			Name:    "oci://quay.io/jetstack/charts/cert-manager",
			Version: "v1.18.2",
		},
		Release: &ReleaseConfig{
			Namespace: "test-vantage-helm-oci",
			Name:      "test-cert-manager",
			Values: map[string]interface{}{
				"crds": map[string]interface{}{"enabled": true},
			},
		},
	}

	client := s.prepare(config)
	deployed := s.deploy(client, config)
	s.Equal(1, deployed.Version)

	config.Release.Values["replicaCount"] = 2
	upgraded := s.deploy(client, config)
	s.Equal(2, upgraded.Version)
}

func TestHelmSuite(t *testing.T) {
	suite.Run(t, new(HelmTestSuite))
}
