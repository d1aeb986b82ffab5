// Package apps holds the deployment apps the CLI can apply to a cluster and
// the driver that runs them while tracking a deployment record.
package apps

import (
	"context"
	"os"

	"github.com/vantagecompute/vantage-cli/internal/clusters"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/deployments"
	"github.com/vantagecompute/vantage-cli/internal/process"
	"github.com/vantagecompute/vantage-cli/internal/templates"
	"github.com/vantagecompute/vantage-cli/internal/workflows"
)

const (
	defaultCloud       = "localhost"
	unknownSubstrate   = "unknown"
	defaultDescription = "No documentation available"
)

// App is a pluggable deployment integration
type App interface {
	Name() string
	Cloud() string
	Substrate() string
	Description() string

	// Prerequisites lists the host tools Deploy shells out to
	Prerequisites() []process.Prerequisite

	// Deploy applies the app to req.Cluster
	Deploy(ctx context.Context, req *Request) error

	// Remove tears down what Deploy created for req.Deployment
	Remove(ctx context.Context, req *Request) error
}

// Request is everything an app needs to deploy or remove itself
type Request struct {
	Deployment *deployments.Deployment
	Cluster    *clusters.Cluster
	Settings   *config.Settings
	Overrides  *config.Overrides
	Store      *deployments.Store
	Runner     process.Runner
	Observer   workflows.Observer

	// Home is the user's home directory, used for shared mounts and SSH keys
	Home string
}

// TemplateContext is the substitution context for the request's cluster
func (r *Request) TemplateContext() *templates.Context {
	c := &templates.Context{}
	if r.Cluster != nil {
		c.ClusterName = r.Cluster.Name
		c.ClientID = r.Cluster.ClientID
		c.ClientSecret = r.Cluster.ClientSecret
		c.JupyterHubToken = r.Cluster.JupyterHubToken()
	}
	if r.Settings != nil {
		c.BaseAPIURL = r.Settings.APIBaseURL
		c.OIDCDomain = r.Settings.OIDCDomain()
		c.OIDCBaseURL = r.Settings.OIDCBaseURL
		c.TunnelAPIURL = r.Settings.TunnelAPIURL
	}
	return c
}

// clientID is the cluster client id, falling back to the recorded one
func (r *Request) clientID() string {
	if r.Cluster != nil && r.Cluster.ClientID != "" {
		return r.Cluster.ClientID
	}
	if r.Deployment != nil {
		return r.Deployment.ClientID()
	}
	return ""
}

func (r *Request) home() string {
	if r.Home != "" {
		return r.Home
	}
	home, _ := os.UserHomeDir()
	return home
}

// record persists metadata on the deployment when a store is attached
func (r *Request) record(values map[string]interface{}) error {
	if r.Store == nil || r.Deployment == nil {
		return nil
	}
	d, err := r.Store.SetMetadata(r.Deployment.ID, values)
	if err != nil {
		return err
	}
	r.Deployment = d
	return nil
}

func (r *Request) addNamespace(namespace string) error {
	if r.Store == nil || r.Deployment == nil {
		return nil
	}
	d, err := r.Store.AddNamespace(r.Deployment.ID, namespace)
	if err != nil {
		return err
	}
	r.Deployment = d
	return nil
}

func (r *Request) plan(ctx context.Context, name string) *workflows.Plan {
	p := workflows.NewPlan(ctx, name)
	if r.Observer != nil {
		p.Observe(r.Observer)
	}
	return p
}

// info carries the descriptive fields every app shares
type info struct {
	name        string
	cloud       string
	substrate   string
	description string
}

func (i info) Name() string {
	return i.name
}

func (i info) Cloud() string {
	if i.cloud == "" {
		return defaultCloud
	}
	return i.cloud
}

func (i info) Substrate() string {
	if i.substrate == "" {
		return unknownSubstrate
	}
	return i.substrate
}

func (i info) Description() string {
	if i.description == "" {
		return defaultDescription
	}
	return i.description
}
