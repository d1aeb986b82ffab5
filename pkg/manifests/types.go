package manifests

import (
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/dynamic"
)

// ManifestSource is one document stream to apply
type ManifestSource struct {
	// Raw manifest content in YAML format
	Content string `koanf:"content"`

	// Template is a Go template rendered with TemplateValues
	Template string `koanf:"template"`

	// Values to use when processing the template
	TemplateValues map[string]interface{} `koanf:"templateValues"`
}

// ManifestConfig is a set of manifests applied into one namespace
type ManifestConfig struct {
	// Namespace to apply namespaced resources to when they do not set one
	Namespace string `koanf:"namespace"`

	// Sources is a list of manifest sources to apply
	Sources []ManifestSource `koanf:"sources"`
}

// Client applies manifests and manages namespaces through the dynamic client
type Client struct {
	dynamicClient dynamic.Interface
	restMapper    meta.RESTMapper
	namespace     string
}
