package apps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/templates"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

const (
	SlurmMultipassName = "slurm-multipass-localhost"

	multipassImage       = "24.04"
	multipassMemory      = "4GB"
	multipassDisk        = "10GB"
	multipassLaunchLimit = 15 * time.Minute
	multipassFallbackHub = "default-token-for-testing"
)

// SlurmMultipass launches a single node SLURM VM with Multipass
type SlurmMultipass struct {
	info

	// pollAttempts and pollDelay bound the wait for the instance to run
	pollAttempts uint
	pollDelay    time.Duration
}

func NewSlurmMultipass() *SlurmMultipass {
	return &SlurmMultipass{
		info: info{
			name:        SlurmMultipassName,
			cloud:       defaultCloud,
			substrate:   "multipass",
			description: "Single node SLURM cluster in a Multipass virtual machine",
		},
		pollAttempts: 60,
		pollDelay:    5 * time.Second,
	}
}

func (a *SlurmMultipass) Prerequisites() []process.Prerequisite {
	return []process.Prerequisite{{
		Name:           "Multipass",
		Command:        "multipass",
		VersionCommand: []string{"version"},
		InstallHint:    "Install it with: sudo snap install multipass",
		Required:       true,
	}}
}

// InstanceName derives the VM name from the cluster client id
func InstanceName(clientID string) string {
	prefix, _, _ := strings.Cut(clientID, "-")
	return "vantage-multipass-singlenode-" + prefix
}

func (a *SlurmMultipass) instanceName(req *Request) string {
	if req.Deployment != nil {
		if name := req.Deployment.MetadataString("instance_name", ""); name != "" {
			return name
		}
	}
	return InstanceName(req.clientID())
}

func (a *SlurmMultipass) Deploy(ctx context.Context, req *Request) error {
	var (
		sharedDir string
		cloudInit string
	)

	instance := a.instanceName(req)
	logger := log.With("app", a.Name(), "instance", instance)

	tc := req.TemplateContext()
	if tc.JupyterHubToken == "" {
		logger.Warn("Cluster has no JupyterHub token, using a placeholder")
		tc.JupyterHubToken = multipassFallbackHub
	}

	plan := req.plan(ctx, a.Name())

	plan.Step("check-prerequisites", func(ctx context.Context) error {
		if _, err := req.Runner.LookPath("multipass"); err != nil {
			return &vantage.Abort{
				Subject:    "MULTIPASS REQUIRED",
				Message:    "Multipass not found. Install it with: sudo snap install multipass",
				LogMessage: "multipass binary not found",
				Err:        err,
			}
		}
		return nil
	})

	plan.Step("prepare-shared-directory", func(context.Context) error {
		sharedDir = filepath.Join(req.home(), "multipass-singlenode", "shared")
		if err := os.MkdirAll(sharedDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sharedDir, err)
		}
		return os.Chmod(sharedDir, 0o755)
	})

	plan.Step("render-cloud-init", func(context.Context) error {
		var err error
		cloudInit, err = templates.CloudInit(tc)
		return err
	})

	plan.Step("launch-instance", func(ctx context.Context) error {
		image := req.Overrides.String(a.Name(), "image", multipassImage)
		cpus := req.Overrides.Int(a.Name(), "cpus", runtime.NumCPU())

		logger.Info("Launching instance", "image", image, "cpus", cpus)
		_, err := req.Runner.Run(ctx, process.Command{
			Name: "multipass",
			Args: []string{
				"launch",
				"-c" + strconv.Itoa(cpus),
				"-m" + req.Overrides.String(a.Name(), "memory", multipassMemory),
				"-d" + req.Overrides.String(a.Name(), "disk", multipassDisk),
				"--mount", sharedDir + ":/shared",
				"-n", instance,
				"--cloud-init", "-",
				image,
			},
			Stdin:   strings.NewReader(cloudInit),
			Timeout: multipassLaunchLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to launch multipass instance: %w", err)
		}

		return req.record(map[string]interface{}{
			"instance_name": instance,
			"image":         image,
			"shared_dir":    sharedDir,
		})
	})

	plan.Step("wait-for-instance", func(ctx context.Context) error {
		state, err := a.waitRunning(ctx, req.Runner, instance)
		if err != nil {
			return err
		}
		logger.Info("Instance is running", "ipv4", state.IPv4)

		values := map[string]interface{}{}
		if len(state.IPv4) > 0 {
			values["ipv4"] = state.IPv4[0]
		}
		return req.record(values)
	})

	return plan.Run()
}

type multipassInstance struct {
	State string   `json:"state"`
	IPv4  []string `json:"ipv4"`
}

type multipassInfo struct {
	Info map[string]multipassInstance `json:"info"`
}

func (a *SlurmMultipass) waitRunning(ctx context.Context, runner process.Runner, instance string) (*multipassInstance, error) {
	var state *multipassInstance

	err := retry.Do(
		func() error {
			res, err := runner.Run(ctx, process.Command{
				Name:    "multipass",
				Args:    []string{"info", instance, "--format", "json"},
				Timeout: 30 * time.Second,
			})
			if err != nil {
				return err
			}

			var out multipassInfo
			if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to parse multipass info: %w", err))
			}

			i, ok := out.Info[instance]
			if !ok {
				return fmt.Errorf("instance %s not reported yet", instance)
			}
			if i.State != "Running" {
				return fmt.Errorf("instance %s is %s", instance, i.State)
			}

			state = &i
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(a.pollAttempts),
		retry.Delay(a.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("instance did not reach Running state: %w", err)
	}

	return state, nil
}

func (a *SlurmMultipass) Remove(ctx context.Context, req *Request) error {
	instance := a.instanceName(req)
	log.Info("Deleting instance", "app", a.Name(), "instance", instance)

	_, err := req.Runner.Run(ctx, process.Command{
		Name:    "multipass",
		Args:    []string{"delete", "--purge", instance},
		Timeout: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to delete multipass instance %s: %w", instance, err)
	}
	return nil
}
