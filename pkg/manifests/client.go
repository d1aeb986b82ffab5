package manifests

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/runtime/serializer/yaml"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/restmapper"
)

var namespaceGVR = schema.GroupVersionResource{Version: "v1", Resource: "namespaces"}

// NewClient creates a new client for applying Kubernetes manifests
func NewClient(getter genericclioptions.RESTClientGetter, namespace string) (*Client, error) {
	config, err := getter.ToRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get Kubernetes config: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	discovery, err := getter.ToDiscoveryClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	apiGroups, err := restmapper.GetAPIGroupResources(discovery)
	if err != nil {
		return nil, fmt.Errorf("failed to get API group resources: %w", err)
	}

	return NewClientWith(dynamicClient, restmapper.NewDiscoveryRESTMapper(apiGroups), namespace), nil
}

// NewClientWith builds a client from an existing dynamic client and mapper
func NewClientWith(dynamicClient dynamic.Interface, mapper meta.RESTMapper, namespace string) *Client {
	return &Client{
		dynamicClient: dynamicClient,
		restMapper:    mapper,
		namespace:     namespace,
	}
}

// getManifestContent renders a source to YAML
func (c *Client) getManifestContent(source ManifestSource) ([]byte, error) {
	if source.Content != "" {
		return []byte(source.Content), nil
	}

	if source.Template != "" {
		tmpl, err := template.New("manifest").Option("missingkey=error").Parse(source.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template: %w", err)
		}

		var rendered bytes.Buffer
		if err := tmpl.Execute(&rendered, source.TemplateValues); err != nil {
			return nil, fmt.Errorf("failed to render template: %w", err)
		}

		return rendered.Bytes(), nil
	}

	return nil, fmt.Errorf("no valid manifest source specified")
}

// ApplyManifests applies Kubernetes manifests from the specified sources
func (c *Client) ApplyManifests(ctx context.Context, config *ManifestConfig) error {
	namespace := "default"
	if config.Namespace != "" {
		namespace = config.Namespace
	} else if c.namespace != "" {
		namespace = c.namespace
	}

	log.Debug("Applying manifests", "namespace", namespace)

	for i, source := range config.Sources {
		content, err := c.getManifestContent(source)
		if err != nil {
			return fmt.Errorf("failed to get manifest content from source #%d: %w", i, err)
		}

		if err := c.applyManifestContent(ctx, content, namespace); err != nil {
			return fmt.Errorf("failed to apply manifest from source #%d: %w", i, err)
		}
	}

	return nil
}

// NamespaceExists reports whether namespace is present
func (c *Client) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	_, err := c.dynamicClient.Resource(namespaceGVR).Get(ctx, namespace, metav1.GetOptions{})
	if err == nil {
		return true, nil
	}
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to get namespace %s: %w", namespace, err)
}

// EnsureNamespaceExists creates namespace unless it exists and waits until
// the API server serves it
func (c *Client) EnsureNamespaceExists(ctx context.Context, namespace string) error {
	exists, err := c.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		log.Debug("Namespace already exists", "name", namespace)
		return nil
	}

	nsObj := &unstructured.Unstructured{}
	nsObj.SetAPIVersion("v1")
	nsObj.SetKind("Namespace")
	nsObj.SetName(namespace)
	nsObj.SetLabels(map[string]string{"app.kubernetes.io/managed-by": "vantage-cli"})

	log.Info("Creating namespace", "name", namespace)
	if _, err := c.dynamicClient.Resource(namespaceGVR).Create(ctx, nsObj, metav1.CreateOptions{}); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create namespace %s: %w", namespace, err)
	}

	return retry.Do(
		func() error {
			exists, err := c.NamespaceExists(ctx, namespace)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("namespace %s was not created properly", namespace)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(10),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// DeleteNamespace removes namespace. A missing namespace is not an error.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	err := c.dynamicClient.Resource(namespaceGVR).Delete(ctx, namespace, metav1.DeleteOptions{})
	if err == nil {
		log.Info("Deleted namespace", "name", namespace)
		return nil
	}
	if apierrors.IsNotFound(err) {
		log.Debug("Namespace not found, nothing to delete", "name", namespace)
		return nil
	}
	return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
}

// applyManifestContent creates or updates every document in content
func (c *Client) applyManifestContent(ctx context.Context, content []byte, defaultNamespace string) error {
	decoder := yaml.NewDecodingSerializer(unstructured.UnstructuredJSONScheme)

	for _, part := range bytes.Split(content, []byte("---\n")) {
		if len(bytes.TrimSpace(part)) == 0 {
			continue
		}

		obj := &unstructured.Unstructured{}
		_, gvk, err := decoder.Decode(part, nil, obj)
		if err != nil {
			return fmt.Errorf("failed to decode manifest: %w", err)
		}

		mapping, err := c.restMapper.RESTMapping(gvk.GroupKind(), gvk.Version)
		if err != nil {
			return fmt.Errorf("failed to get REST mapping for %s: %w", gvk.String(), err)
		}

		var dr dynamic.ResourceInterface
		if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
			if obj.GetNamespace() == "" {
				obj.SetNamespace(defaultNamespace)
			}
			dr = c.dynamicClient.Resource(mapping.Resource).Namespace(obj.GetNamespace())
		} else {
			dr = c.dynamicClient.Resource(mapping.Resource)
		}

		name := obj.GetName()
		existing, err := dr.Get(ctx, name, metav1.GetOptions{})
		switch {
		case err == nil:
			obj.SetResourceVersion(existing.GetResourceVersion())
			if _, err := dr.Update(ctx, obj, metav1.UpdateOptions{}); err != nil {
				return fmt.Errorf("failed to update resource %s/%s: %w", gvk.Kind, name, err)
			}
			log.Debug("Updated resource", "kind", gvk.Kind, "name", name, "namespace", obj.GetNamespace())
		case apierrors.IsNotFound(err):
			if _, err := dr.Create(ctx, obj, metav1.CreateOptions{}); err != nil {
				return fmt.Errorf("failed to create resource %s/%s: %w", gvk.Kind, name, err)
			}
			log.Debug("Created resource", "kind", gvk.Kind, "name", name, "namespace", obj.GetNamespace())
		default:
			return fmt.Errorf("failed to get resource %s/%s: %w", gvk.Kind, name, err)
		}
	}

	return nil
}
