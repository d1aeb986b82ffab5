// Package clusters manages Vantage clusters through the cluster GraphQL API
package clusters

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cluster is a remote HPC cluster tracked by the control plane
type Cluster struct {
	Name               string                 `json:"name"`
	Status             string                 `json:"status"`
	ClientID           string                 `json:"clientId"`
	ClientSecret       string                 `json:"clientSecret,omitempty"`
	Description        string                 `json:"description"`
	OwnerEmail         string                 `json:"ownerEmail"`
	Provider           string                 `json:"provider"`
	CloudAccountID     string                 `json:"cloudAccountId,omitempty"`
	CreationParameters map[string]interface{} `json:"creationParameters,omitempty"`
	JupyterHubURL      string                 `json:"jupyterhubUrl,omitempty"`
}

// UnmarshalJSON accepts cloudAccountId as a string or a number
func (c *Cluster) UnmarshalJSON(data []byte) error {
	type plain Cluster
	aux := struct {
		*plain
		CloudAccountID interface{} `json:"cloudAccountId"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch v := aux.CloudAccountID.(type) {
	case nil:
		c.CloudAccountID = ""
	case string:
		c.CloudAccountID = v
	case float64:
		c.CloudAccountID = fmt.Sprintf("%.0f", v)
	default:
		c.CloudAccountID = fmt.Sprint(v)
	}

	if c.Status == "" {
		c.Status = "unknown"
	}
	if c.Provider == "" {
		c.Provider = "unknown"
	}
	return nil
}

// JupyterHubToken is the hub API token the control plane generated for the
// cluster, if any
func (c *Cluster) JupyterHubToken() string {
	if v, ok := c.CreationParameters["jupyterhub_token"].(string); ok {
		return v
	}
	return ""
}

// Ready reports whether the control plane has finished provisioning
func (c *Cluster) Ready() bool {
	return strings.EqualFold(c.Status, "ready")
}

// Type is the human readable provider name
func (c *Cluster) Type() string {
	switch c.Provider {
	case "on_prem":
		return "On-Premises"
	case "aws":
		return "AWS"
	case "gcp":
		return "Google Cloud"
	case "azure":
		return "Azure"
	case "localhost":
		return "Local"
	}
	if c.Provider == "" {
		return ""
	}
	return strings.ToUpper(c.Provider[:1]) + c.Provider[1:]
}

// ToMap is the cluster data recorded on a deployment
func (c *Cluster) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"name":     c.Name,
		"status":   c.Status,
		"clientId": c.ClientID,
		"provider": c.Provider,
	}
	if c.ClientSecret != "" {
		m["clientSecret"] = c.ClientSecret
	}
	if c.Description != "" {
		m["description"] = c.Description
	}
	if c.OwnerEmail != "" {
		m["ownerEmail"] = c.OwnerEmail
	}
	if len(c.CreationParameters) > 0 {
		m["creationParameters"] = c.CreationParameters
	}
	return m
}

// JupyterHubURL derives the hub URL of a cluster from the web app URL:
// https://app.example.com and client id abc give https://abc.example.com
func JupyterHubURL(vantageURL, clientID string) string {
	host := vantageURL
	if i := strings.Index(host, "//"); i >= 0 {
		host = host[i+2:]
	}
	if i := strings.Index(host, "."); i >= 0 {
		host = host[i+1:]
	}
	return fmt.Sprintf("https://%s.%s", clientID, host)
}

// Provider maps a cloud name to the provider enum the API accepts
func Provider(cloud string) string {
	if cloud == "aws" {
		return "aws"
	}
	return "on_prem"
}
