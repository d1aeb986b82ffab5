package apps

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/internal/workflows"
	"github.com/vantagecompute/vantage-cli/pkg/helm"
	"github.com/vantagecompute/vantage-cli/pkg/manifests"
	"gopkg.in/yaml.v3"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

// NamespaceClient is the part of the manifests client the Kubernetes apps use
type NamespaceClient interface {
	NamespaceExists(ctx context.Context, namespace string) (bool, error)
	EnsureNamespaceExists(ctx context.Context, namespace string) error
	DeleteNamespace(ctx context.Context, namespace string) error
	ApplyManifests(ctx context.Context, config *manifests.ManifestConfig) error
}

// Kube is a connection to the cluster a Kubernetes app deploys into
type Kube struct {
	Namespaces NamespaceClient
	Releases   workflows.ReleaseClientFactory
	Uninstall  func(namespace, release string) error

	close func()
}

// Close releases resources held by the connection
func (k *Kube) Close() {
	if k.close != nil {
		k.close()
	}
}

// KubeConnector opens a Kube for the local cluster
type KubeConnector func(ctx context.Context, runner process.Runner) (*Kube, error)

// ConnectMicroK8s builds clients from the kubeconfig `microk8s config` prints
func ConnectMicroK8s(ctx context.Context, runner process.Runner) (*Kube, error) {
	res, err := runner.Run(ctx, process.Command{
		Name:    "microk8s",
		Args:    []string{"config"},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read microk8s kubeconfig: %w", err)
	}

	f, err := os.CreateTemp("", "vantage-microk8s-*.kubeconfig")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		cleanup()
		return nil, err
	}
	if _, err := f.WriteString(res.Stdout); err != nil {
		f.Close()
		cleanup()
		return nil, fmt.Errorf("failed to write kubeconfig: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return nil, err
	}

	flags := genericclioptions.NewConfigFlags(true)
	flags.KubeConfig = &path

	namespaces, err := manifests.NewClient(flags, "")
	if err != nil {
		cleanup()
		return nil, err
	}

	log.Debug("Connected to microk8s", "kubeconfig", path)

	return &Kube{
		Namespaces: namespaces,
		Releases:   workflows.HelmClientFactory(flags),
		Uninstall: func(namespace, release string) error {
			client, err := helm.NewClient(flags, namespace)
			if err != nil {
				return err
			}
			return client.UninstallRelease(release)
		},
		close: cleanup,
	}, nil
}

// microk8sAddon is a required addon and the command that enables it
type microk8sAddon struct {
	name   string
	enable string
}

var requiredAddons = []microk8sAddon{
	{"dns", "microk8s.enable dns"},
	{"hostpath-storage", "sudo microk8s.enable hostpath-storage"},
	{"metallb", "microk8s.enable metallb:10.64.140.43-10.64.140.49"},
	{"helm3", "microk8s.enable helm3"},
}

type microk8sStatus struct {
	MicroK8s struct {
		Running bool `yaml:"running"`
	} `yaml:"microk8s"`
	Addons []struct {
		Name   string `yaml:"name"`
		Status string `yaml:"status"`
	} `yaml:"addons"`
}

func microk8sPrerequisites() []process.Prerequisite {
	return []process.Prerequisite{{
		Name:           "MicroK8s",
		Command:        "microk8s",
		VersionCommand: []string{"version"},
		InstallHint:    "Install it with: sudo snap install microk8s --classic",
		Required:       true,
	}}
}

// checkMicroK8s verifies microk8s runs with every addon in addons enabled
func checkMicroK8s(ctx context.Context, runner process.Runner, addons []microk8sAddon) error {
	if _, err := process.CheckAll(ctx, runner, microk8sPrerequisites()); err != nil {
		return &vantage.Abort{
			Subject: "MICROK8S REQUIRED",
			Message: err.Error(),
			Err:     err,
		}
	}

	res, err := runner.Run(ctx, process.Command{
		Name:    "microk8s",
		Args:    []string{"status", "--format", "yaml"},
		Timeout: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to get microk8s status: %w", err)
	}

	var status microk8sStatus
	if err := yaml.Unmarshal([]byte(res.Stdout), &status); err != nil {
		return fmt.Errorf("failed to parse microk8s status: %w", err)
	}

	if !status.MicroK8s.Running {
		return vantage.Abortf("MICROK8S NOT RUNNING", "MicroK8s is not running. Please start it with: sudo microk8s start")
	}

	enabled := map[string]bool{}
	for _, a := range status.Addons {
		enabled[a.Name] = a.Status == "enabled"
	}

	var missing []string
	for _, a := range addons {
		if !enabled[a.name] {
			missing = append(missing, fmt.Sprintf("%s (enable with: %s)", a.name, a.enable))
		}
	}
	if len(missing) > 0 {
		return &vantage.Abort{
			Subject:    "MICROK8S ADDONS REQUIRED",
			Message:    "Enable the missing MicroK8s addons: " + strings.Join(missing, ", "),
			LogMessage: fmt.Sprintf("missing microk8s addons: %v", missing),
		}
	}

	return nil
}

// connect opens the cluster with connector, defaulting to microk8s
func connect(ctx context.Context, connector KubeConnector, runner process.Runner) (*Kube, error) {
	if connector == nil {
		connector = ConnectMicroK8s
	}
	return connector(ctx, runner)
}
