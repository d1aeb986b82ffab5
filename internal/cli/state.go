package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vantagecompute/vantage-cli/internal/apps"
	"github.com/vantagecompute/vantage-cli/internal/auth"
	"github.com/vantagecompute/vantage-cli/internal/clouds"
	"github.com/vantagecompute/vantage-cli/internal/clusters"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/deployments"
	"github.com/vantagecompute/vantage-cli/internal/notebooks"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/internal/workflows"
	"github.com/vantagecompute/vantage-cli/pkg/api"
)

// Option customizes the root command, mostly for tests
type Option func(*state)

// WithRunner replaces the process runner used by deployment apps
func WithRunner(r process.Runner) Option {
	return func(s *state) { s.runner = r }
}

// WithHTTPClient replaces the client used for the API and the identity
// provider
func WithHTTPClient(c *http.Client) Option {
	return func(s *state) { s.http = c }
}

// WithRegistry replaces the app registry
func WithRegistry(r *apps.Registry) Option {
	return func(s *state) { s.registry = r }
}

// WithInput sets the reader confirmation prompts read from
func WithInput(in io.Reader) Option {
	return func(s *state) { s.in = in }
}

// state is shared by every command of one invocation. It is filled in by
// the root PersistentPreRunE.
type state struct {
	opts     vantage.Options
	paths    config.Paths
	profiles *config.ProfileStore

	in       io.Reader
	runner   process.Runner
	http     *http.Client
	registry *apps.Registry

	client *api.Client
}

func newState(opts ...Option) *state {
	s := &state{
		in:       os.Stdin,
		runner:   process.NewExecRunner(),
		registry: apps.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load resolves the profile and its settings and attaches them to the
// command context
func (s *state) load(cmd *cobra.Command) error {
	if s.opts.Verbose {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}

	paths, err := config.DefaultPaths()
	if err != nil {
		return fmt.Errorf("failed to locate the configuration directory: %w", err)
	}
	s.paths = paths
	s.profiles = config.NewProfileStore(paths)

	if err := s.profiles.EnsureDefault(); err != nil {
		return err
	}

	if s.opts.Profile == "" {
		s.opts.Profile = s.profiles.Active()
	}

	settings, err := s.profiles.Settings(s.opts.Profile)
	if err != nil {
		return &vantage.Abort{
			Subject:    "PROFILE NOT FOUND",
			Message:    fmt.Sprintf("Profile '%s' does not exist. Create it with `vantage profile create %s`.", s.opts.Profile, s.opts.Profile),
			LogMessage: err.Error(),
			Err:        err,
		}
	}
	log.Debug("Loaded profile", "profile", s.opts.Profile, "api", settings.APIBaseURL)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	cmd.SetContext(vantage.New(parent, settings, &s.opts))
	return nil
}

// contextSettings returns the profile settings load attached to ctx
func contextSettings(ctx context.Context) (*config.Settings, error) {
	settings, err := vantage.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("command context: %w", err)
	}
	return settings, nil
}

func (s *state) authenticator(ctx context.Context) (*auth.Authenticator, error) {
	settings, err := contextSettings(ctx)
	if err != nil {
		return nil, err
	}

	a := auth.New(settings, auth.NewCache(s.paths, vantage.OutputOptions(ctx).Profile))
	if s.http != nil {
		a = a.WithHTTPClient(s.http)
	}
	return a, nil
}

// apiClient returns an authenticated API client, built on first use
func (s *state) apiClient(ctx context.Context) (*api.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	settings, err := contextSettings(ctx)
	if err != nil {
		return nil, err
	}
	authenticator, err := s.authenticator(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := authenticator.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	opts := []api.Option{api.WithUserAgent("vantage-cli/" + Version)}
	if s.http != nil {
		opts = append(opts, api.WithHTTPClient(s.http))
	}
	s.client = api.NewClient(settings.APIBaseURL, tokens, opts...)
	return s.client, nil
}

func (s *state) clusters(ctx context.Context) (*clusters.Service, error) {
	client, err := s.apiClient(ctx)
	if err != nil {
		return nil, err
	}
	settings := vantage.MustSettings(ctx)
	return clusters.NewService(client, settings.GraphQLURL(), settings.VantageURL()), nil
}

func (s *state) notebooks(ctx context.Context) (*notebooks.Service, error) {
	client, err := s.apiClient(ctx)
	if err != nil {
		return nil, err
	}
	return notebooks.NewService(client, vantage.MustSettings(ctx).GraphQLURL()), nil
}

func (s *state) clouds() *clouds.Store {
	return clouds.NewStore(s.paths.CloudsFile())
}

func (s *state) deployments() *deployments.Store {
	return deployments.NewStore(s.paths.DeploymentsFile())
}

// driver builds the deployment driver. secrets may be nil for dev runs.
func (s *state) driver(ctx context.Context, secrets apps.SecretSource) (*apps.Driver, error) {
	settings, err := contextSettings(ctx)
	if err != nil {
		return nil, err
	}

	overrides, err := config.LoadOverrides(s.paths.AppOverridesFile())
	if err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	return &apps.Driver{
		Registry:  s.registry,
		Store:     s.deployments(),
		Settings:  settings,
		Overrides: overrides,
		Runner:    s.runner,
		Secrets:   secrets,
		Observer:  logObserver,
		Home:      home,
	}, nil
}

func logObserver(step string, state workflows.StepState, err error) {
	switch state {
	case workflows.StepFailed:
		log.Error("Step failed", "step", step, "error", err)
	case workflows.StepCompleted:
		log.Info("Step completed", "step", step)
	default:
		log.Debug("Step "+string(state), "step", step)
	}
}
