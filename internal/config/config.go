package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/vantagecompute/vantage-cli/pkg/helm"
)

var parserMap = map[string]koanf.Parser{
	".yaml": yaml.Parser(),
	".yml":  yaml.Parser(),
	".toml": toml.Parser(),
	".json": json.Parser(),
}

// Overrides holds user supplied per-app configuration, keyed by app name and
// then by Helm component name:
//
//	slurm-microk8s-localhost:
//	  prometheus:
//	    chart:
//	      version: 77.0.0
type Overrides struct {
	k *koanf.Koanf
}

// NewOverrides returns an empty set of overrides
func NewOverrides() *Overrides {
	return &Overrides{k: koanf.New(".")}
}

// LoadOverrides reads an overrides file. A missing file is not an error.
func LoadOverrides(configFile string) (*Overrides, error) {
	o := NewOverrides()
	if configFile == "" {
		return o, nil
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Debug("config file does not exist", "path", configFile)
		return o, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to check config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configFile))
	parser, ok := parserMap[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported config file format: %s", configFile)
	}

	if err := o.k.Load(file.Provider(configFile), parser); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
	}

	log.Debug("loaded config file", "path", configFile)
	return o, nil
}

// HelmComponent returns the overrides for one Helm component of an app. The
// result is empty, never nil, when nothing is configured.
func (o *Overrides) HelmComponent(app, component string) (*helm.ComponentConfig, error) {
	override := &helm.ComponentConfig{}

	key := app + "." + component
	if o == nil || !o.k.Exists(key) {
		return override, nil
	}

	if err := o.k.Unmarshal(key, override); err != nil {
		return nil, fmt.Errorf("failed to unmarshal component %q: %w", key, err)
	}

	return override, nil
}

// String returns a value under the app's section, or def when unset
func (o *Overrides) String(app, key, def string) string {
	if o == nil {
		return def
	}
	full := app + "." + key
	if !o.k.Exists(full) {
		return def
	}
	return o.k.String(full)
}

// Int returns a value under the app's section, or def when unset
func (o *Overrides) Int(app, key string, def int) int {
	if o == nil {
		return def
	}
	full := app + "." + key
	if !o.k.Exists(full) {
		return def
	}
	return o.k.Int(full)
}
