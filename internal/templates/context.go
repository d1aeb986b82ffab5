// Package templates renders the configuration handed to the external tools
// that deployment apps drive: cloud-init user data for Multipass, the Juju
// bundle and secret, and Helm values for the MicroK8s charts.
package templates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is wrapped by Validate when a required field is empty
var ErrMissingField = errors.New("missing required template field")

// Context carries the cluster credentials and endpoints substituted into
// every template
type Context struct {
	ClusterName     string
	ClientID        string
	ClientSecret    string
	BaseAPIURL      string
	OIDCDomain      string
	OIDCBaseURL     string
	TunnelAPIURL    string
	JupyterHubToken string
}

// Validate reports every empty field that the templates require
func (c *Context) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"cluster name", c.ClusterName},
		{"client id", c.ClientID},
		{"client secret", c.ClientSecret},
		{"base API URL", c.BaseAPIURL},
		{"OIDC domain", c.OIDCDomain},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
