package apps

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func newTestRequest(t *testing.T, runner process.Runner) *Request {
	t.Helper()

	settings := config.DefaultSettings()
	return &Request{
		Cluster:  DevCluster("hpc"),
		Settings: &settings,
		Runner:   runner,
		Home:     t.TempDir(),
	}
}

func fastMultipass() *SlurmMultipass {
	app := NewSlurmMultipass()
	app.pollAttempts = 3
	app.pollDelay = time.Millisecond
	return app
}

func TestInstanceName(t *testing.T) {
	assert.Equal(t, "vantage-multipass-singlenode-dev", InstanceName(DevClientID))
	assert.Equal(t, "vantage-multipass-singlenode-abc", InstanceName("abc"))
}

func TestSlurmMultipass_Deploy(t *testing.T) {
	runner := process.NewFakeRunner().
		On("multipass info", process.FakeResponse{Sequence: []string{
			`{"info": {}}`,
			`{"info": {"vantage-multipass-singlenode-dev": {"state": "Starting"}}}`,
			`{"info": {"vantage-multipass-singlenode-dev": {"state": "Running", "ipv4": ["10.1.2.3"]}}}`,
		}})

	req := newTestRequest(t, runner)
	require.NoError(t, fastMultipass().Deploy(context.Background(), req))

	lines := runner.Lines()
	require.Len(t, lines, 4)

	shared := filepath.Join(req.Home, "multipass-singlenode", "shared")
	assert.True(t, strings.HasPrefix(lines[0], "multipass launch -c"))
	assert.Contains(t, lines[0], "-m4GB -d10GB --mount "+shared+":/shared -n vantage-multipass-singlenode-dev --cloud-init - 24.04")
	assert.DirExists(t, shared)

	assert.True(t, strings.HasPrefix(runner.Stdins[0], "#cloud-config\n"))
	assert.Contains(t, runner.Stdins[0], DevJupyterHubToken)
}

func TestSlurmMultipass_DeployPlaceholderToken(t *testing.T) {
	runner := process.NewFakeRunner().
		On("multipass info", process.FakeResponse{
			Stdout: `{"info": {"vantage-multipass-singlenode-dev": {"state": "Running"}}}`,
		})

	req := newTestRequest(t, runner)
	req.Cluster.CreationParameters = nil

	require.NoError(t, fastMultipass().Deploy(context.Background(), req))
	assert.Contains(t, runner.Stdins[0], multipassFallbackHub)
}

func TestSlurmMultipass_DeployErrors(t *testing.T) {
	tests := []struct {
		name    string
		runner  func() *process.FakeRunner
		subject string
		wantErr string
	}{
		{
			name: "multipass missing",
			runner: func() *process.FakeRunner {
				r := process.NewFakeRunner()
				r.Missing["multipass"] = true
				return r
			},
			subject: "MULTIPASS REQUIRED",
		},
		{
			name: "launch fails",
			runner: func() *process.FakeRunner {
				return process.NewFakeRunner().On("multipass launch", process.FakeResponse{
					Err: &process.ExitError{Command: "multipass launch", ExitCode: 2, Stderr: "instance exists"},
				})
			},
			wantErr: "instance exists",
		},
		{
			name: "never running",
			runner: func() *process.FakeRunner {
				return process.NewFakeRunner().On("multipass info", process.FakeResponse{
					Stdout: `{"info": {"vantage-multipass-singlenode-dev": {"state": "Stopped"}}}`,
				})
			},
			wantErr: "did not reach Running state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fastMultipass().Deploy(context.Background(), newTestRequest(t, tt.runner()))
			require.Error(t, err)

			if tt.subject != "" {
				var abort *vantage.Abort
				require.True(t, errors.As(err, &abort))
				assert.Equal(t, tt.subject, abort.Subject)
			}
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestSlurmMultipass_Remove(t *testing.T) {
	runner := process.NewFakeRunner()
	req := newTestRequest(t, runner)

	require.NoError(t, NewSlurmMultipass().Remove(context.Background(), req))
	assert.Equal(t, []string{"multipass delete --purge vantage-multipass-singlenode-dev"}, runner.Lines())
}
