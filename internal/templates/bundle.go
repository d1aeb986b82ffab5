package templates

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/bundle.yaml
var bundleYAML []byte

// Bundle is a Juju bundle: applications, the machines they are placed on and
// the relations between them
type Bundle struct {
	Applications map[string]*Application `yaml:"applications"`
	Machines     map[string]Machine      `yaml:"machines"`
	Relations    [][]string              `yaml:"relations"`
}

type Application struct {
	Charm       string                 `yaml:"charm"`
	Base        string                 `yaml:"base,omitempty"`
	Channel     string                 `yaml:"channel,omitempty"`
	NumUnits    int                    `yaml:"num_units"`
	To          []string               `yaml:"to,omitempty"`
	Constraints string                 `yaml:"constraints,omitempty"`
	Storage     map[string]string      `yaml:"storage,omitempty"`
	Options     map[string]interface{} `yaml:"options,omitempty"`
}

type Machine struct {
	Constraints string `yaml:"constraints,omitempty"`
	Base        string `yaml:"base,omitempty"`
}

// DefaultBundle parses the embedded Charmed HPC bundle
func DefaultBundle() (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(bundleYAML, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}
	return &b, nil
}

// JujuBundle returns the default bundle with agent, slurmctld and jupyterhub
// options filled in for model
func JujuBundle(c *Context, model, secretID string) (*Bundle, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	b, err := DefaultBundle()
	if err != nil {
		return nil, err
	}

	set := func(app string, options map[string]interface{}) error {
		a, ok := b.Applications[app]
		if !ok {
			return fmt.Errorf("bundle has no application %q", app)
		}
		if a.Options == nil {
			a.Options = map[string]interface{}{}
		}
		for k, v := range options {
			a.Options[k] = v
		}
		return nil
	}

	if err := set("slurmctld", map[string]interface{}{"cluster-name": model}); err != nil {
		return nil, err
	}
	if err := set("vantage-agent", map[string]interface{}{
		"vantage-agent-base-api-url":       c.BaseAPIURL,
		"vantage-agent-oidc-client-id":     c.ClientID,
		"vantage-agent-oidc-domain":        c.OIDCDomain,
		"vantage-agent-oidc-client-secret": c.ClientSecret,
		"vantage-agent-cluster-name":       model,
	}); err != nil {
		return nil, err
	}
	if err := set("jobbergate-agent", map[string]interface{}{
		"jobbergate-agent-base-api-url":       c.BaseAPIURL,
		"jobbergate-agent-oidc-domain":        c.OIDCDomain,
		"jobbergate-agent-oidc-client-id":     c.ClientID,
		"jobbergate-agent-oidc-client-secret": c.ClientSecret,
	}); err != nil {
		return nil, err
	}
	if err := set("vantage-jupyterhub", map[string]interface{}{
		"vantage-jupyterhub-config-secret-id": secretID,
	}); err != nil {
		return nil, err
	}

	return b, nil
}

// YAML serializes the bundle for juju deploy
func (b *Bundle) YAML() ([]byte, error) {
	return yaml.Marshal(b)
}

// JujuSecretArgs returns the key=value pairs stored in the jupyterhub secret
func JujuSecretArgs(c *Context) ([]string, error) {
	if c.JupyterHubToken == "" {
		return nil, fmt.Errorf("%w: jupyterhub token", ErrMissingField)
	}

	return []string{
		"oidc-client-id=" + c.ClientID,
		"oidc-client-secret=" + c.ClientSecret,
		"oidc-base-url=" + c.OIDCBaseURL,
		"tunnel-api-url=" + c.TunnelAPIURL,
		"vantage-api-url=" + c.BaseAPIURL,
		"oidc-domain=" + c.OIDCDomain,
		"jupyterhub-token=" + c.JupyterHubToken,
	}, nil
}
