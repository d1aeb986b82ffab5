package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var valuesFS embed.FS

// Names of the embedded Helm values documents
const (
	ValuesSlurmOperator = "slurm-operator"
	ValuesSlurmCluster  = "slurm-cluster"
	ValuesJupyterHub    = "jupyterhub"
)

// HelmValues returns a fresh copy of the named embedded values document
func HelmValues(name string) (map[string]interface{}, error) {
	data, err := valuesFS.ReadFile("data/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown values %q: %w", name, err)
	}

	values := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse values %q: %w", name, err)
	}
	return values, nil
}

// SlurmClusterValues returns the slurm chart values with login node
// credentials and authorized keys injected
func SlurmClusterValues(c *Context, sshKeys []string) (map[string]interface{}, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	values, err := HelmValues(ValuesSlurmCluster)
	if err != nil {
		return nil, err
	}

	loginset, err := nestedMap(values, "loginsets", "slinky")
	if err != nil {
		return nil, err
	}
	login, err := nestedMap(loginset, "login")
	if err != nil {
		return nil, err
	}

	if len(sshKeys) > 0 {
		loginset["rootSshAuthorizedKeys"] = strings.Join(sshKeys, "\n")
	}

	login["env"] = []interface{}{
		env("OIDC_CLIENT_ID", c.ClientID),
		env("OIDC_CLIENT_SECRET", c.ClientSecret),
		env("OIDC_DOMAIN", c.OIDCDomain),
		env("DEFAULT_SLURM_WORK_DIR", "/tmp"),
		env("TASK_JOBS_INTERVAL_SECONDS", "10"),
	}

	return values, nil
}

// ReadSSHKeys returns the public keys found under home/.ssh, RSA first
func ReadSSHKeys(home string) []string {
	var keys []string
	for _, name := range []string{"id_rsa.pub", "id_ed25519.pub"} {
		data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		if key := strings.TrimSpace(string(data)); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func env(name, value string) map[string]interface{} {
	return map[string]interface{}{"name": name, "value": value}
}

func nestedMap(m map[string]interface{}, keys ...string) (map[string]interface{}, error) {
	current := m
	for _, k := range keys {
		next, ok := current[k].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("values have no map at %q", k)
		}
		current = next
	}
	return current, nil
}
