package apps

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/pkg/helm"
)

// mergedComponent returns base with the user's overrides for app/component
// applied on top
func mergedComponent(overrides *config.Overrides, app, component string, base *helm.ComponentConfig) (*helm.ComponentConfig, error) {
	override, err := overrides.HelmComponent(app, component)
	if err != nil {
		return nil, err
	}

	merged := &helm.ComponentConfig{}
	if err := mergo.Merge(merged, base); err != nil {
		return nil, err
	}

	if err := mergo.Merge(merged, override, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge overrides for %s: %w", component, err)
	}

	return merged, nil
}
