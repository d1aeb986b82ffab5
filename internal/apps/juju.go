package apps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/templates"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

const (
	SlurmJujuName = "slurm-juju-localhost"

	jupyterHubSecretName = "vantage-jupyterhub-config"
	jupyterHubAppName    = "vantage-jupyterhub"
	jujuDeployTimeout    = 120 * time.Second
	jujuCommandTimeout   = 60 * time.Second
	acctGatherConf       = "/etc/slurm/acct_gather.conf"
)

// SlurmJuju deploys the Charmed HPC bundle into a new model on the local LXD
// controller
type SlurmJuju struct {
	info

	pollAttempts uint
	pollDelay    time.Duration
}

func NewSlurmJuju() *SlurmJuju {
	return &SlurmJuju{
		info: info{
			name:        SlurmJujuName,
			cloud:       defaultCloud,
			substrate:   "lxd",
			description: "SLURM cluster deployed with Juju on the local LXD cloud",
		},
		pollAttempts: 360,
		pollDelay:    5 * time.Second,
	}
}

func (a *SlurmJuju) Prerequisites() []process.Prerequisite {
	return []process.Prerequisite{
		{
			Name:           "Juju",
			Command:        "juju",
			VersionCommand: []string{"version"},
			InstallHint:    "Install it with: sudo snap install juju",
			Required:       true,
		},
		{
			Name:           "LXD",
			Command:        "lxc",
			VersionCommand: []string{"version"},
			InstallHint:    "Install it with: sudo snap install lxd && lxd init --auto",
			Required:       true,
		},
	}
}

// juju runs a juju subcommand and returns its trimmed stdout
func juju(ctx context.Context, runner process.Runner, timeout time.Duration, args ...string) (string, error) {
	if timeout == 0 {
		timeout = jujuCommandTimeout
	}
	res, err := runner.Run(ctx, process.Command{
		Name:    "juju",
		Args:    args,
		Timeout: timeout,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (a *SlurmJuju) Deploy(ctx context.Context, req *Request) error {
	var (
		secretArgs []string
		secretID   string
		units      *jujuStatus
	)

	tc := req.TemplateContext()
	model := tc.ClientID
	logger := log.With("app", a.Name(), "model", model)

	plan := req.plan(ctx, a.Name())

	plan.Step("check-prerequisites", func(ctx context.Context) error {
		if _, err := process.CheckAll(ctx, req.Runner, a.Prerequisites()); err != nil {
			return &vantage.Abort{
				Subject: "JUJU REQUIRED",
				Message: err.Error(),
				Err:     err,
			}
		}

		var err error
		secretArgs, err = templates.JujuSecretArgs(tc)
		if err != nil {
			return fmt.Errorf("cluster is missing the JupyterHub token: %w", err)
		}
		return nil
	})

	plan.Step("add-model", func(ctx context.Context) error {
		logger.Info("Adding model")
		if _, err := juju(ctx, req.Runner, 0, "add-model", model, "localhost"); err != nil {
			return fmt.Errorf("failed to add model %s: %w", model, err)
		}
		return req.record(map[string]interface{}{"model": model})
	})

	plan.Step("add-secret", func(ctx context.Context) error {
		args := append([]string{"add-secret", jupyterHubSecretName}, secretArgs...)
		args = append(args, "-m", model)

		out, err := juju(ctx, req.Runner, 0, args...)
		if err != nil {
			return fmt.Errorf("failed to add secret %s: %w", jupyterHubSecretName, err)
		}
		if out == "" {
			return fmt.Errorf("juju add-secret returned no secret id")
		}
		secretID = out
		return nil
	})

	plan.Step("deploy-bundle", func(ctx context.Context) error {
		bundle, err := templates.JujuBundle(tc, model, secretID)
		if err != nil {
			return err
		}
		data, err := bundle.YAML()
		if err != nil {
			return fmt.Errorf("failed to render bundle: %w", err)
		}

		dir, err := os.MkdirTemp("", "vantage-juju-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "bundle.yaml")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("failed to write bundle: %w", err)
		}

		logger.Info("Deploying bundle")
		if _, err := juju(ctx, req.Runner, jujuDeployTimeout, "deploy", path, "-m", model); err != nil {
			return fmt.Errorf("failed to deploy bundle: %w", err)
		}
		return nil
	})

	plan.Step("grant-secret", func(ctx context.Context) error {
		_, err := juju(ctx, req.Runner, 0, "grant-secret", jupyterHubSecretName, jupyterHubAppName, "-m", model)
		if err != nil {
			return fmt.Errorf("failed to grant secret to %s: %w", jupyterHubAppName, err)
		}
		return nil
	})

	plan.Step("wait-for-idle", func(ctx context.Context) error {
		var err error
		units, err = a.waitIdle(ctx, req.Runner, model)
		return err
	})

	plan.Step("configure-slurmd", func(ctx context.Context) error {
		for _, unit := range units.unitNames("slurmd") {
			logger.Info("Running node-configured", "unit", unit)
			if _, err := juju(ctx, req.Runner, 0, "run", unit, "node-configured", "-m", model); err != nil {
				return fmt.Errorf("node-configured failed on %s: %w", unit, err)
			}
		}
		return nil
	})

	plan.Step("configure-influxdb", func(ctx context.Context) error {
		leader := units.leader("slurmctld")
		if leader == "" {
			logger.Debug("No slurmctld leader, skipping influxdb configuration")
			return nil
		}

		out, err := juju(ctx, req.Runner, 0, "exec", "--unit", leader, "-m", model, "--", "sudo", "cat", acctGatherConf)
		if err != nil {
			logger.Warn("Could not read accounting configuration", "unit", leader, "error", err)
			return nil
		}

		dsn := InfluxDSN(out)
		if dsn == "" {
			logger.Debug("Accounting configuration has no influxdb profile")
			return nil
		}

		_, err = juju(ctx, req.Runner, 0, "config", "jobbergate-agent", "-m", model, "jobbergate-agent-influx-dsn="+dsn)
		if err != nil {
			return fmt.Errorf("failed to configure jobbergate-agent: %w", err)
		}
		return nil
	})

	return plan.Run()
}

type jujuWorkload struct {
	Current string `json:"current"`
}

type jujuUnit struct {
	WorkloadStatus jujuWorkload `json:"workload-status"`
	Leader         bool         `json:"leader"`
}

type jujuApplication struct {
	ApplicationStatus jujuWorkload        `json:"application-status"`
	Units             map[string]jujuUnit `json:"units"`
}

type jujuStatus struct {
	Applications map[string]jujuApplication `json:"applications"`
}

func settled(status string) bool {
	return status == "" || status == "active" || status == "idle"
}

// pending lists the applications and units that are not active or idle
func (s *jujuStatus) pending() []string {
	var names []string
	for name, app := range s.Applications {
		if !settled(app.ApplicationStatus.Current) {
			names = append(names, name)
		}
		for unit, u := range app.Units {
			if !settled(u.WorkloadStatus.Current) {
				names = append(names, unit)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (s *jujuStatus) unitNames(app string) []string {
	if s == nil {
		return nil
	}
	var names []string
	for name := range s.Applications[app].Units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *jujuStatus) leader(app string) string {
	if s == nil {
		return ""
	}
	for _, name := range s.unitNames(app) {
		if s.Applications[app].Units[name].Leader {
			return name
		}
	}
	return ""
}

func (a *SlurmJuju) waitIdle(ctx context.Context, runner process.Runner, model string) (*jujuStatus, error) {
	var status *jujuStatus

	err := retry.Do(
		func() error {
			out, err := juju(ctx, runner, 0, "status", "--format", "json", "-m", model)
			if err != nil {
				return err
			}

			var s jujuStatus
			if err := json.Unmarshal([]byte(out), &s); err != nil {
				return fmt.Errorf("failed to parse juju status: %w", err)
			}

			if pending := s.pending(); len(pending) > 0 {
				return fmt.Errorf("waiting for %s", strings.Join(pending, ", "))
			}

			status = &s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(a.pollAttempts),
		retry.Delay(a.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug("Model not idle yet", "model", model, "attempt", n+1, "reason", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("model %s did not settle: %w", model, err)
	}

	return status, nil
}

// InfluxDSN builds the jobbergate influx DSN from the profile settings of a
// SLURM acct_gather.conf. It returns "" unless every setting is present.
func InfluxDSN(conf string) string {
	fields := map[string]string{}
	for _, line := range strings.Split(conf, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	host := fields["profileinfluxdbhost"]
	user := fields["profileinfluxdbuser"]
	pass := fields["profileinfluxdbpass"]
	db := fields["profileinfluxdbdatabase"]
	rp := fields["profileinfluxdbrtpolicy"]
	if host == "" || user == "" || pass == "" || db == "" || rp == "" {
		return ""
	}

	u := url.URL{
		Scheme:   "influxdb",
		User:     url.UserPassword(user, pass),
		Host:     host,
		Path:     "/" + db,
		RawQuery: url.Values{"rp": []string{rp}}.Encode(),
	}
	return u.String()
}

func (a *SlurmJuju) Remove(ctx context.Context, req *Request) error {
	model := req.clientID()
	if req.Deployment != nil {
		model = req.Deployment.MetadataString("model", model)
	}
	if model == "" {
		return fmt.Errorf("deployment has no juju model recorded")
	}

	log.Info("Destroying model", "app", a.Name(), "model", model)
	_, err := juju(ctx, req.Runner, 10*time.Minute, "destroy-model", "--no-prompt", "--destroy-storage", model)
	if err != nil {
		return fmt.Errorf("failed to destroy model %s: %w", model, err)
	}
	return nil
}
