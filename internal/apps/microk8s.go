package apps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/templates"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/pkg/helm"
	"github.com/vantagecompute/vantage-cli/pkg/manifests"
)

const SlurmMicroK8sName = "slurm-microk8s-localhost"

const (
	namespaceCertManager = "cert-manager"
	namespacePrometheus  = "prometheus"
	namespaceSlinky      = "slinky"
	namespaceSlurm       = "slurm"

	slurmChartVersion = "0.4.0"
)

// markerTemplate records which deployment owns a namespace
const markerTemplate = `apiVersion: v1
kind: ConfigMap
metadata:
  name: vantage-deployment
  labels:
    app.kubernetes.io/managed-by: vantage-cli
data:
  deployment-id: "{{ .id }}"
  app: "{{ .app }}"
  cluster: "{{ .cluster }}"
  client-id: "{{ .clientID }}"
`

// SlurmMicroK8s installs the Slinky SLURM operator stack on MicroK8s
type SlurmMicroK8s struct {
	info

	connector KubeConnector
}

func NewSlurmMicroK8s() *SlurmMicroK8s {
	return &SlurmMicroK8s{
		info: info{
			name:        SlurmMicroK8sName,
			cloud:       defaultCloud,
			substrate:   "microk8s",
			description: "SLURM cluster on MicroK8s with the Slinky operator, cert-manager and Prometheus",
		},
	}
}

func (a *SlurmMicroK8s) Prerequisites() []process.Prerequisite {
	return microk8sPrerequisites()
}

// components returns the Helm releases in install order
func (a *SlurmMicroK8s) components(req *Request, slurmValues map[string]interface{}) ([]*helm.ComponentConfig, error) {
	operatorValues, err := templates.HelmValues(templates.ValuesSlurmOperator)
	if err != nil {
		return nil, err
	}

	bases := []struct {
		name   string
		config *helm.ComponentConfig
	}{
		{"cert-manager", &helm.ComponentConfig{
			Chart: &helm.ChartConfig{
				Name:    "oci://quay.io/jetstack/charts/cert-manager",
				Version: "v1.18.2",
			},
			Release: &helm.ReleaseConfig{
				Namespace: namespaceCertManager,
				Name:      "cert-manager",
				Values: map[string]interface{}{
					"crds": map[string]interface{}{"enabled": true},
				},
			},
		}},
		{"prometheus", &helm.ComponentConfig{
			Chart: &helm.ChartConfig{
				RepoURL: "https://prometheus-community.github.io/helm-charts",
				Name:    "kube-prometheus-stack",
			},
			Release: &helm.ReleaseConfig{
				Namespace: namespacePrometheus,
				Name:      "prometheus",
				Values:    map[string]interface{}{},
				Timeout:   10 * time.Minute,
			},
		}},
		{"slurm-operator-crds", &helm.ComponentConfig{
			Chart: &helm.ChartConfig{
				RepoURL: "https://jamesbeedy.github.io/slurm-operator",
				Name:    "slurm-operator-crds",
				Version: slurmChartVersion,
			},
			Release: &helm.ReleaseConfig{
				Namespace: "default",
				Name:      "slurm-operator-crds",
				Values:    map[string]interface{}{},
			},
		}},
		{"slurm-operator", &helm.ComponentConfig{
			Chart: &helm.ChartConfig{
				Name:    "oci://ghcr.io/slinkyproject/charts/slurm-operator",
				Version: slurmChartVersion,
			},
			Release: &helm.ReleaseConfig{
				Namespace: namespaceSlinky,
				Name:      "slurm-operator",
				Values:    operatorValues,
			},
		}},
		{"slurm", &helm.ComponentConfig{
			Chart: &helm.ChartConfig{
				Name:    "oci://ghcr.io/slinkyproject/charts/slurm",
				Version: slurmChartVersion,
			},
			Release: &helm.ReleaseConfig{
				Namespace: namespaceSlurm,
				Name:      "slurm",
				Values:    slurmValues,
			},
		}},
	}

	components := make([]*helm.ComponentConfig, 0, len(bases))
	for _, b := range bases {
		merged, err := mergedComponent(req.Overrides, a.Name(), b.name, b.config)
		if err != nil {
			return nil, err
		}
		components = append(components, merged)
	}
	return components, nil
}

func (a *SlurmMicroK8s) Deploy(ctx context.Context, req *Request) error {
	var (
		kube       *Kube
		components []*helm.ComponentConfig
	)
	defer func() {
		if kube != nil {
			kube.Close()
		}
	}()

	tc := req.TemplateContext()
	logger := log.With("app", a.Name(), "cluster", tc.ClusterName)

	// Releases are only known once values are rendered, so the plan is built
	// in two phases: preparation then one step per release.
	prepare := req.plan(ctx, a.Name()+"-prepare")

	prepare.Step("check-microk8s", func(ctx context.Context) error {
		return checkMicroK8s(ctx, req.Runner, requiredAddons)
	})

	prepare.Step("connect", func(ctx context.Context) error {
		var err error
		kube, err = connect(ctx, a.connector, req.Runner)
		return err
	})

	prepare.Step("check-existing-namespaces", func(ctx context.Context) error {
		var found []string
		for _, ns := range []string{namespaceSlinky, namespaceSlurm} {
			exists, err := kube.Namespaces.NamespaceExists(ctx, ns)
			if err != nil {
				return err
			}
			if exists {
				found = append(found, ns)
			}
		}
		if len(found) > 0 {
			return &vantage.Abort{
				Subject: "EXISTING SLURM DEPLOYMENT",
				Message: fmt.Sprintf("Found SLURM namespaces: %s. Remove the existing deployment first, "+
					"or clean up with: microk8s kubectl delete namespace %s",
					strings.Join(found, ", "), strings.Join(found, " ")),
				LogMessage: fmt.Sprintf("existing namespaces: %v", found),
			}
		}
		return nil
	})

	prepare.Step("render-values", func(context.Context) error {
		keys := templates.ReadSSHKeys(req.home())
		values, err := templates.SlurmClusterValues(tc, keys)
		if err != nil {
			return err
		}
		values["clusterName"] = tc.ClientID

		components, err = a.components(req, values)
		if err != nil {
			return err
		}
		return req.record(map[string]interface{}{"ssh_keys_present": len(keys) > 0})
	})

	prepare.Step("create-namespaces", func(ctx context.Context) error {
		for _, ns := range []string{namespaceCertManager, namespacePrometheus, namespaceSlinky, namespaceSlurm} {
			if err := kube.Namespaces.EnsureNamespaceExists(ctx, ns); err != nil {
				return err
			}
			if err := req.addNamespace(ns); err != nil {
				return err
			}
			if err := applyMarker(ctx, kube, ns, req, a.Name()); err != nil {
				return err
			}
		}
		return nil
	})

	if err := prepare.Run(); err != nil {
		return err
	}

	install := req.plan(ctx, a.Name()+"-install")
	for _, component := range components {
		install.HelmRelease(kube.Releases, component)
	}
	if err := install.Run(); err != nil {
		return err
	}

	logger.Info("SLURM stack installed", "releases", len(components))
	return nil
}

func (a *SlurmMicroK8s) Remove(ctx context.Context, req *Request) error {
	kube, err := connect(ctx, a.connector, req.Runner)
	if err != nil {
		return err
	}
	defer kube.Close()

	var errs []error
	for _, r := range []struct{ namespace, name string }{
		{namespaceSlurm, "slurm"},
		{namespaceSlinky, "slurm-operator"},
		{"default", "slurm-operator-crds"},
		{namespacePrometheus, "prometheus"},
		{namespaceCertManager, "cert-manager"},
	} {
		log.Info("Uninstalling release", "name", r.name, "namespace", r.namespace)
		if err := kube.Uninstall(r.namespace, r.name); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", r.name, err))
		}
	}

	for _, ns := range []string{namespaceSlurm, namespaceSlinky} {
		if err := kube.Namespaces.DeleteNamespace(ctx, ns); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// applyMarker writes the ownership ConfigMap into namespace
func applyMarker(ctx context.Context, kube *Kube, namespace string, req *Request, app string) error {
	values := map[string]interface{}{
		"id":       "",
		"app":      app,
		"cluster":  "",
		"clientID": req.clientID(),
	}
	if req.Deployment != nil {
		values["id"] = req.Deployment.ID
		values["cluster"] = req.Deployment.ClusterName
	}

	return kube.Namespaces.ApplyManifests(ctx, &manifests.ManifestConfig{
		Namespace: namespace,
		Sources: []manifests.ManifestSource{{
			Template:       markerTemplate,
			TemplateValues: values,
		}},
	})
}
