package workflows

import (
	"context"

	"github.com/charmbracelet/log"
	flow "github.com/noneback/go-taskflow"
	"github.com/vantagecompute/vantage-cli/pkg/helm"
	"helm.sh/helm/v3/pkg/release"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

// ReleaseClient is the part of the Helm client a release step needs
type ReleaseClient interface {
	ReleaseExists(name string) (bool, error)
	InstallRelease(config *helm.ComponentConfig) (*release.Release, error)
	DeployRelease(config *helm.ComponentConfig) (*release.Release, error)
}

// ReleaseClientFactory builds a client for a namespace
type ReleaseClientFactory func(namespace string) (ReleaseClient, error)

// HelmClientFactory returns a factory backed by the Helm SDK
func HelmClientFactory(getter genericclioptions.RESTClientGetter) ReleaseClientFactory {
	return func(namespace string) (ReleaseClient, error) {
		return helm.NewClient(getter, namespace)
	}
}

// HelmRelease appends an install-or-upgrade step for component
func (p *Plan) HelmRelease(factory ReleaseClientFactory, component *helm.ComponentConfig) *flow.Task {
	name := component.Release.Name

	var client ReleaseClient
	connect := func() error {
		if client != nil {
			return nil
		}
		c, err := factory(component.Release.Namespace)
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	return p.Branch("release-"+name,
		func(context.Context) (bool, error) {
			if err := connect(); err != nil {
				return false, err
			}
			return client.ReleaseExists(name)
		},
		func(context.Context) error {
			log.Info("Installing release", "name", name, "namespace", component.Release.Namespace)
			rel, err := client.InstallRelease(component)
			if err != nil {
				return err
			}
			log.Info("Successfully installed release", "name", name, "revision", rel.Version)
			return nil
		},
		func(context.Context) error {
			log.Info("Upgrading release", "name", name, "namespace", component.Release.Namespace)
			rel, err := client.DeployRelease(component)
			if err != nil {
				return err
			}
			log.Info("Release is up to date", "name", name, "revision", rel.Version)
			return nil
		},
	)
}
