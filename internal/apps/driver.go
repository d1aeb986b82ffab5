package apps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/clusters"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/deployments"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/internal/workflows"
)

// Synthetic cluster data used by --dev-run
const (
	DevClientID        = "dev-client-12345-abcde-fghij-klmno"
	DevClientSecret    = "dev-secret-67890-pqrst-uvwxy-zabcd"
	DevJupyterHubToken = "dev-jupyter-token-98765"
)

// SecretSource looks up the OIDC client secret of a cluster
type SecretSource interface {
	ClientSecret(ctx context.Context, clientID string) (string, error)
}

// DeployOptions tune a single Deploy call
type DeployOptions struct {
	// DevRun skips the API and expects synthetic cluster data
	DevRun bool
}

// Driver runs apps against clusters and keeps the deployment records
type Driver struct {
	Registry  *Registry
	Store     *deployments.Store
	Settings  *config.Settings
	Overrides *config.Overrides
	Runner    process.Runner
	Secrets   SecretSource
	Observer  workflows.Observer
	Home      string

	now func() time.Time
}

func (d *Driver) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// DevCluster returns synthetic cluster data for local development
func DevCluster(name string) *clusters.Cluster {
	return &clusters.Cluster{
		Name:         name,
		Status:       "READY",
		ClientID:     DevClientID,
		ClientSecret: DevClientSecret,
		Description:  "Development cluster",
		Provider:     "localhost",
		CreationParameters: map[string]interface{}{
			"jupyterhub_token": DevJupyterHubToken,
		},
	}
}

// DeploymentName is <app>-<cluster>-YYYYMMDD-HHMMSS
func DeploymentName(app, cluster string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", app, cluster, at.Format("20060102-150405"))
}

func (d *Driver) app(name string) (App, error) {
	app, err := d.Registry.Get(name)
	if err != nil {
		return nil, &vantage.Abort{
			Subject:    "APP NOT FOUND",
			Message:    fmt.Sprintf("App '%s' not found. Available apps: %s", name, strings.Join(d.Registry.Names(), ", ")),
			LogMessage: err.Error(),
			Err:        vantage.ErrNotFound,
		}
	}
	return app, nil
}

// resolveSecret fills in the client secret from the API or the environment
func (d *Driver) resolveSecret(ctx context.Context, cluster *clusters.Cluster, devRun bool) error {
	if cluster.ClientSecret != "" {
		return nil
	}

	if !devRun && d.Secrets != nil {
		secret, err := d.Secrets.ClientSecret(ctx, cluster.ClientID)
		if err == nil && secret != "" {
			cluster.ClientSecret = secret
			return nil
		}
		log.Debug("Could not fetch client secret from the API", "client_id", cluster.ClientID, "error", err)
	}

	if secret := os.Getenv(config.EnvClientSecret); secret != "" {
		log.Debug("Using client secret from the environment", "variable", config.EnvClientSecret)
		cluster.ClientSecret = secret
		return nil
	}

	return vantage.Abortf("CLIENT SECRET REQUIRED",
		"No client secret available for cluster '%s'. Set %s or check your permissions.",
		cluster.Name, config.EnvClientSecret)
}

func validateCluster(cluster *clusters.Cluster) error {
	if cluster == nil || cluster.Name == "" {
		return vantage.Abortf("INVALID CLUSTER", "No cluster data provided")
	}
	if cluster.ClientID == "" {
		return vantage.Abortf("INVALID CLUSTER", "Cluster '%s' has no client id", cluster.Name)
	}
	return nil
}

// Deploy applies app to cluster and returns the deployment record. The
// record is kept on failure with status failed.
func (d *Driver) Deploy(ctx context.Context, appName string, cluster *clusters.Cluster, opts DeployOptions) (*deployments.Deployment, error) {
	app, err := d.app(appName)
	if err != nil {
		return nil, err
	}

	if err := validateCluster(cluster); err != nil {
		return nil, err
	}
	if err := d.resolveSecret(ctx, cluster, opts.DevRun); err != nil {
		return nil, err
	}

	clusterData := cluster.ToMap()
	delete(clusterData, "clientSecret")

	record, err := d.Store.Create(&deployments.Deployment{
		Name:        DeploymentName(app.Name(), cluster.Name, d.clock()),
		AppName:     app.Name(),
		ClusterName: cluster.Name,
		Cloud:       app.Cloud(),
		Substrate:   app.Substrate(),
		Status:      deployments.StatusInit,
		ClusterData: clusterData,
		Metadata: map[string]interface{}{
			"dev_run": opts.DevRun,
		},
	})
	if errors.Is(err, deployments.ErrNameTaken) {
		return nil, vantage.Abortf("DEPLOYMENT EXISTS", "A deployment of %s to %s was started within the same second. Retry in a moment.", app.Name(), cluster.Name)
	} else if err != nil {
		return nil, fmt.Errorf("failed to create deployment record: %w", err)
	}

	logger := log.With("app", app.Name(), "deployment", record.ID)

	if record, err = d.Store.UpdateStatus(record.ID, deployments.StatusDeploying); err != nil {
		return nil, err
	}

	req := &Request{
		Deployment: record,
		Cluster:    cluster,
		Settings:   d.Settings,
		Overrides:  d.Overrides,
		Store:      d.Store,
		Runner:     d.Runner,
		Observer:   d.Observer,
		Home:       d.Home,
	}

	logger.Info("Deploying app", "cluster", cluster.Name)
	if err := app.Deploy(ctx, req); err != nil {
		logger.Error("Deployment failed", "error", err)
		failed, serr := d.Store.UpdateStatus(record.ID, deployments.StatusFailed)
		if serr != nil {
			logger.Warn("Could not record failure", "error", serr)
			failed = req.Deployment
		}
		return failed, deployFailure(err)
	}

	record, err = d.Store.UpdateStatus(record.ID, deployments.StatusActive)
	if err != nil {
		return nil, err
	}

	logger.Info("Deployment is active", "name", record.Name)
	return record, nil
}

func deployFailure(err error) error {
	var abort *vantage.Abort
	if errors.As(err, &abort) {
		return abort
	}
	return &vantage.Abort{
		Subject:    "DEPLOYMENT FAILED",
		Message:    fmt.Sprintf("Deployment failed: %v", err),
		LogMessage: err.Error(),
		Err:        err,
	}
}

// clusterFromRecord rebuilds the cluster fields removal needs
func clusterFromRecord(d *deployments.Deployment) *clusters.Cluster {
	c := &clusters.Cluster{Name: d.ClusterName, ClientID: d.ClientID()}
	if params, ok := d.ClusterData["creationParameters"].(map[string]interface{}); ok {
		c.CreationParameters = params
	}
	return c
}

// Remove tears down a deployment. The record is dropped unless keepRecord is
// set, in which case it stays with status deleted.
func (d *Driver) Remove(ctx context.Context, idOrName string, keepRecord bool) (*deployments.Deployment, error) {
	record, err := d.Store.Get(idOrName)
	if err != nil {
		if errors.Is(err, deployments.ErrNotFound) {
			return nil, vantage.Abortf("DEPLOYMENT NOT FOUND", "Deployment '%s' not found", idOrName)
		}
		return nil, err
	}

	app, err := d.app(record.AppName)
	if err != nil {
		return nil, err
	}

	if record, err = d.Store.UpdateStatus(record.ID, deployments.StatusDeleting); err != nil {
		return nil, err
	}

	req := &Request{
		Deployment: record,
		Cluster:    clusterFromRecord(record),
		Settings:   d.Settings,
		Overrides:  d.Overrides,
		Store:      d.Store,
		Runner:     d.Runner,
		Observer:   d.Observer,
		Home:       d.Home,
	}

	if err := app.Remove(ctx, req); err != nil {
		if _, serr := d.Store.UpdateStatus(record.ID, deployments.StatusFailed); serr != nil {
			log.Warn("Could not record failure", "id", record.ID, "error", serr)
		}
		return record, &vantage.Abort{
			Subject:    "REMOVAL FAILED",
			Message:    fmt.Sprintf("Failed to remove deployment '%s': %v", record.Name, err),
			LogMessage: err.Error(),
			Err:        err,
		}
	}

	if keepRecord {
		return d.Store.MarkDeleted(record.ID)
	}

	if err := d.Store.Remove(record.ID); err != nil {
		return nil, err
	}
	record.Status = deployments.StatusDeleted
	return record, nil
}

// Cleanup drops the records of failed and deleted deployments
func (d *Driver) Cleanup() ([]*deployments.Deployment, error) {
	var removed []*deployments.Deployment

	for _, status := range []deployments.Status{deployments.StatusFailed, deployments.StatusDeleted} {
		records, err := d.Store.List(deployments.Filter{Status: status})
		if err != nil {
			return removed, err
		}
		for _, r := range records {
			if err := d.Store.Remove(r.ID); err != nil {
				return removed, err
			}
			removed = append(removed, r)
		}
	}

	return removed, nil
}
