package helm

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/registry"
	"helm.sh/helm/v3/pkg/release"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

// DefaultTimeout is used when a release does not set its own
const DefaultTimeout = 5 * time.Minute

// Client provides a Helm client for interacting with a Kubernetes cluster
type Client struct {
	getter       genericclioptions.RESTClientGetter
	Namespace    string
	actionConfig *action.Configuration
}

// NewClient creates a new Helm client
func NewClient(getter genericclioptions.RESTClientGetter, namespace string) (*Client, error) {
	registryClient, err := registry.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}

	actionConfig := new(action.Configuration)
	actionConfig.RegistryClient = registryClient

	if err := actionConfig.Init(getter, namespace, os.Getenv("HELM_DRIVER"), func(format string, args ...interface{}) {
		log.With("namespace", namespace).Debugf(format, args...)
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize action config: %w", err)
	}

	if err := actionConfig.KubeClient.IsReachable(); err != nil {
		return nil, fmt.Errorf("kubernetes cluster is not reachable: %w", err)
	}

	return &Client{
		getter:       getter,
		Namespace:    namespace,
		actionConfig: actionConfig,
	}, nil
}

// loadChart loads a Helm chart from the given chart configuration
func (c *Client) loadChart(chartName string, chartPathOptions action.ChartPathOptions) (*chart.Chart, error) {
	chartPath, err := chartPathOptions.LocateChart(chartName, cli.New())
	if err != nil {
		return nil, fmt.Errorf("failed to locate chart %s: %w", chartName, err)
	}

	return loader.Load(chartPath)
}

func timeout(config *ComponentConfig) time.Duration {
	if config.Release.Timeout > 0 {
		return config.Release.Timeout
	}
	return DefaultTimeout
}

// configureInstallAction creates and configures an install action
func (c *Client) configureInstallAction(config *ComponentConfig) *action.Install {
	install := action.NewInstall(c.actionConfig)

	install.RepoURL = config.Chart.RepoURL
	install.ReleaseName = config.Release.Name
	install.Version = config.Chart.Version

	install.Namespace = config.Release.Namespace
	install.CreateNamespace = true

	install.Wait = true
	install.Timeout = timeout(config)

	return install
}

// configureUpgradeAction creates and configures an upgrade action
func (c *Client) configureUpgradeAction(config *ComponentConfig) *action.Upgrade {
	upgrade := action.NewUpgrade(c.actionConfig)

	upgrade.Install = true
	upgrade.RepoURL = config.Chart.RepoURL
	upgrade.Version = config.Chart.Version

	upgrade.Namespace = config.Release.Namespace
	upgrade.ResetValues = true
	upgrade.Wait = true
	upgrade.Timeout = timeout(config)

	return upgrade
}

// ReleaseExists checks if a release exists
func (c *Client) ReleaseExists(releaseName string) (bool, error) {
	history := action.NewHistory(c.actionConfig)
	history.Max = 1

	_, err := history.Run(releaseName)
	return err == nil, nil
}

// UninstallRelease removes a Helm release. A missing release is not an error.
func (c *Client) UninstallRelease(releaseName string) error {
	exists, err := c.ReleaseExists(releaseName)
	if err != nil {
		return err
	}
	if !exists {
		log.Debug("Release not found, nothing to uninstall", "name", releaseName)
		return nil
	}

	uninstall := action.NewUninstall(c.actionConfig)
	uninstall.Wait = true
	uninstall.Timeout = DefaultTimeout
	if _, err := uninstall.Run(releaseName); err != nil {
		return fmt.Errorf("failed to uninstall release %s: %w", releaseName, err)
	}

	log.Info("Successfully uninstalled release", "name", releaseName)
	return nil
}

// GetRelease retrieves a deployed release
func (c *Client) GetRelease(releaseName string) (*release.Release, error) {
	get := action.NewGet(c.actionConfig)
	return get.Run(releaseName)
}

// InstallRelease installs a Helm chart as a new release
func (c *Client) InstallRelease(config *ComponentConfig) (*release.Release, error) {
	install := c.configureInstallAction(config)

	ch, err := c.loadChart(config.Chart.Name, install.ChartPathOptions)
	if err != nil {
		return nil, err
	}

	return install.Run(ch, AddConfigHash(config.Release.Values))
}

// UpgradeRelease upgrades an existing Helm release
func (c *Client) UpgradeRelease(config *ComponentConfig) (*release.Release, error) {
	upgrade := c.configureUpgradeAction(config)

	ch, err := c.loadChart(config.Chart.Name, upgrade.ChartPathOptions)
	if err != nil {
		return nil, err
	}

	return upgrade.Run(config.Release.Name, ch, AddConfigHash(config.Release.Values))
}

// NeedsUpgrade compares the config hash of the deployed release with the
// hash of the values about to be applied
func (c *Client) NeedsUpgrade(config *ComponentConfig) (bool, error) {
	deployed, err := c.GetRelease(config.Release.Name)
	if err != nil {
		return false, fmt.Errorf("failed to get deployed release: %w", err)
	}

	if deployed.Chart != nil && deployed.Chart.Metadata != nil &&
		config.Chart.Version != "" && deployed.Chart.Metadata.Version != trimV(config.Chart.Version) {
		return true, nil
	}

	return NeedsUpdate(AddConfigHash(config.Release.Values), deployed), nil
}

// DeployRelease installs or upgrades a release based on whether it exists
func (c *Client) DeployRelease(config *ComponentConfig) (*release.Release, error) {
	exists, err := c.ReleaseExists(config.Release.Name)
	if err != nil {
		return nil, err
	}

	if !exists {
		return c.InstallRelease(config)
	}

	needsUpgrade, err := c.NeedsUpgrade(config)
	if err != nil {
		return nil, err
	}

	if !needsUpgrade {
		log.Info("No changes detected, skipping upgrade", "name", config.Release.Name)
		return c.GetRelease(config.Release.Name)
	}

	return c.UpgradeRelease(config)
}

func trimV(version string) string {
	if len(version) > 1 && version[0] == 'v' {
		return version[1:]
	}
	return version
}
