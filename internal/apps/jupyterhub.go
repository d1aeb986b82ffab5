package apps

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/templates"
	"github.com/vantagecompute/vantage-cli/internal/workflows"
	"github.com/vantagecompute/vantage-cli/pkg/helm"
)

const (
	JupyterHubMicroK8sName = "jupyterhub-microk8s-localhost"

	jupyterHubNamespace = "jupyterhub"
	jupyterHubRelease   = "jupyterhub"
	jupyterHubTimeout   = 300 * time.Second
)

// JupyterHubMicroK8s installs a standalone JupyterHub chart on MicroK8s
type JupyterHubMicroK8s struct {
	info

	connector KubeConnector
}

func NewJupyterHubMicroK8s() *JupyterHubMicroK8s {
	return &JupyterHubMicroK8s{
		info: info{
			name:        JupyterHubMicroK8sName,
			cloud:       defaultCloud,
			substrate:   "microk8s",
			description: "JupyterHub on MicroK8s with dummy authentication",
		},
	}
}

func (a *JupyterHubMicroK8s) Prerequisites() []process.Prerequisite {
	return microk8sPrerequisites()
}

func (a *JupyterHubMicroK8s) component(req *Request) (*helm.ComponentConfig, error) {
	values, err := templates.HelmValues(templates.ValuesJupyterHub)
	if err != nil {
		return nil, err
	}

	return mergedComponent(req.Overrides, a.Name(), "jupyterhub", &helm.ComponentConfig{
		Chart: &helm.ChartConfig{
			RepoURL: "https://hub.jupyter.org/helm-chart/",
			Name:    "jupyterhub",
		},
		Release: &helm.ReleaseConfig{
			Namespace: jupyterHubNamespace,
			Name:      jupyterHubRelease,
			Values:    values,
			Timeout:   jupyterHubTimeout,
		},
	})
}

func (a *JupyterHubMicroK8s) Deploy(ctx context.Context, req *Request) error {
	component, err := a.component(req)
	if err != nil {
		return err
	}
	namespace := component.Release.Namespace

	var kube *Kube
	defer func() {
		if kube != nil {
			kube.Close()
		}
	}()

	plan := req.plan(ctx, a.Name())

	plan.Step("check-microk8s", func(ctx context.Context) error {
		return checkMicroK8s(ctx, req.Runner, requiredAddons)
	})

	plan.Step("connect", func(ctx context.Context) error {
		k, err := connect(ctx, a.connector, req.Runner)
		if err != nil {
			return err
		}
		kube = k
		return nil
	})

	plan.Step("create-namespace", func(ctx context.Context) error {
		if err := kube.Namespaces.EnsureNamespaceExists(ctx, namespace); err != nil {
			return err
		}
		if err := req.addNamespace(namespace); err != nil {
			return err
		}
		if err := req.record(map[string]interface{}{
			"namespace":    namespace,
			"release_name": component.Release.Name,
		}); err != nil {
			return err
		}
		return applyMarker(ctx, kube, namespace, req, a.Name())
	})

	// The release client is only available once connected
	plan.HelmRelease(func(ns string) (workflows.ReleaseClient, error) {
		return kube.Releases(ns)
	}, component)

	if err := plan.Run(); err != nil {
		return err
	}

	log.Info("JupyterHub installed", "app", a.Name(), "namespace", namespace)
	return nil
}

func (a *JupyterHubMicroK8s) Remove(ctx context.Context, req *Request) error {
	namespace := jupyterHubNamespace
	release := jupyterHubRelease
	if req.Deployment != nil {
		namespace = req.Deployment.MetadataString("namespace", namespace)
		release = req.Deployment.MetadataString("release_name", release)
	}

	kube, err := connect(ctx, a.connector, req.Runner)
	if err != nil {
		return err
	}
	defer kube.Close()

	log.Info("Uninstalling release", "name", release, "namespace", namespace)
	return errors.Join(
		kube.Uninstall(namespace, release),
		kube.Namespaces.DeleteNamespace(ctx, namespace),
	)
}
