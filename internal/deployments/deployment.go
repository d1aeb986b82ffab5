// Package deployments tracks the apps deployed from this machine in a JSON
// file under the CLI home directory.
package deployments

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a deployment
type Status string

const (
	StatusInit      Status = "init"
	StatusDeploying Status = "deploying"
	StatusActive    Status = "active"
	StatusFailed    Status = "failed"
	StatusDeleting  Status = "deleting"
	StatusDeleted   Status = "deleted"
)

const unknown = "unknown"

// Deployment is a tracked instance of an app applied to a cluster
type Deployment struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	AppName       string                 `json:"app_name"`
	ClusterName   string                 `json:"cluster_name"`
	Cloud         string                 `json:"cloud"`
	Substrate     string                 `json:"substrate"`
	Status        Status                 `json:"status"`
	ClusterData   map[string]interface{} `json:"cluster_data,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	K8sNamespaces []string               `json:"k8s_namespaces,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// timeLayouts are accepted for created_at and updated_at. Records written by
// older tools carry ISO timestamps without a zone, read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func (d *Deployment) UnmarshalJSON(data []byte) error {
	type plain Deployment
	aux := struct {
		*plain
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}{plain: (*plain)(d)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if d.CreatedAt, err = parseTime(aux.CreatedAt); err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(aux.UpdatedAt); err != nil {
		return fmt.Errorf("updated_at: %w", err)
	}
	return nil
}

// ClientID returns the OIDC client id recorded from the cluster
func (d *Deployment) ClientID() string {
	if id, ok := d.ClusterData["clientId"].(string); ok {
		return id
	}
	return ""
}

// MetadataString returns a string metadata value or def
func (d *Deployment) MetadataString(key, def string) string {
	if v, ok := d.Metadata[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (d *Deployment) fillDefaults() {
	for _, f := range []*string{&d.Name, &d.AppName, &d.ClusterName, &d.Cloud, &d.Substrate} {
		if *f == "" {
			*f = unknown
		}
	}
	if d.Status == "" {
		d.Status = unknown
	}
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Cloud  string
	Status Status
	App    string
}

func (f Filter) matches(d *Deployment) bool {
	if f.Cloud != "" && d.Cloud != f.Cloud {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.App != "" && d.AppName != f.App {
		return false
	}
	return true
}
