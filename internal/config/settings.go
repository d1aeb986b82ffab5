package config

import (
	"os"
	"strings"

	"dario.cat/mergo"
)

const (
	// DefaultProfile is the profile created on first run and used when no
	// other profile is active
	DefaultProfile = "default"

	oidcRealmPath  = "/realms/vantage"
	oidcTokenPath  = oidcRealmPath + "/protocol/openid-connect/token"
	oidcDevicePath = oidcRealmPath + "/device"
)

// Environment variables that override profile settings at load time
const (
	EnvBaseAPIURL   = "VANTAGE_BASE_API_URL"
	EnvOIDCBaseURL  = "VANTAGE_OIDC_DOMAIN"
	EnvTunnelAPIURL = "VANTAGE_TUNNEL_API_URL"
	EnvClientSecret = "VANTAGE_CLIENT_SECRET"
)

// Settings holds the endpoints and OIDC parameters of a profile
type Settings struct {
	// APIBaseURL is the root of the Vantage REST and GraphQL APIs.
	APIBaseURL string `koanf:"api_base_url" json:"api_base_url"`

	// OIDCBaseURL is the root of the identity provider.
	OIDCBaseURL string `koanf:"oidc_base_url" json:"oidc_base_url"`

	// TunnelAPIURL is the endpoint agents use to expose notebook servers.
	TunnelAPIURL string `koanf:"tunnel_api_url" json:"tunnel_api_url"`

	// OIDCClientID is the public client used for the device login flow.
	OIDCClientID string `koanf:"oidc_client_id" json:"oidc_client_id"`

	// OIDCMaxPollTime bounds the device login flow, in seconds.
	OIDCMaxPollTime int `koanf:"oidc_max_poll_time" json:"oidc_max_poll_time"`

	// SupportedClouds lists the clouds this profile may target.
	SupportedClouds []string `koanf:"supported_clouds" json:"supported_clouds"`
}

// DefaultSettings returns the settings used for new profiles
func DefaultSettings() Settings {
	return Settings{
		APIBaseURL:      "https://apis.vantagecompute.ai",
		OIDCBaseURL:     "https://auth.vantagecompute.ai",
		TunnelAPIURL:    "https://tunnel.vantagecompute.ai",
		OIDCClientID:    "default",
		OIDCMaxPollTime: 300,
		SupportedClouds: []string{"localhost", "aws", "gcp", "azure", "on-premises", "cudo-compute"},
	}
}

// WithDefaults fills any unset field from DefaultSettings
func (s Settings) WithDefaults() (Settings, error) {
	merged := s
	if err := mergo.Merge(&merged, DefaultSettings()); err != nil {
		return Settings{}, err
	}
	merged.APIBaseURL = strings.TrimRight(merged.APIBaseURL, "/")
	merged.OIDCBaseURL = strings.TrimRight(merged.OIDCBaseURL, "/")
	merged.TunnelAPIURL = strings.TrimRight(merged.TunnelAPIURL, "/")
	return merged, nil
}

// applyEnv overrides endpoints from the environment
func (s *Settings) applyEnv() {
	if v := os.Getenv(EnvBaseAPIURL); v != "" {
		s.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvOIDCBaseURL); v != "" {
		s.OIDCBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvTunnelAPIURL); v != "" {
		s.TunnelAPIURL = strings.TrimRight(v, "/")
	}
}

// OIDCDomain is the issuer host and realm without scheme, the form agents
// expect in their configuration.
func (s *Settings) OIDCDomain() string {
	host := s.OIDCBaseURL
	if i := strings.Index(host, "//"); i >= 0 {
		host = host[i+2:]
	}
	return host + oidcRealmPath
}

func (s *Settings) OIDCTokenURL() string {
	return s.OIDCBaseURL + oidcTokenPath
}

func (s *Settings) OIDCDeviceURL() string {
	return s.OIDCBaseURL + oidcDevicePath
}

// GraphQLURL is the cluster GraphQL endpoint
func (s *Settings) GraphQLURL() string {
	return s.APIBaseURL + "/cluster/graphql"
}

// SupportGraphQLURL is the support ticket GraphQL endpoint
func (s *Settings) SupportGraphQLURL() string {
	return s.APIBaseURL + "/sos/graphql"
}

// VantageURL is the web application URL derived from the API host
func (s *Settings) VantageURL() string {
	return strings.Replace(s.APIBaseURL, "://apis.", "://app.", 1)
}

// SupportsCloud reports whether the profile allows deployments to cloud
func (s *Settings) SupportsCloud(cloud string) bool {
	for _, c := range s.SupportedClouds {
		if c == cloud {
			return true
		}
	}
	return false
}
