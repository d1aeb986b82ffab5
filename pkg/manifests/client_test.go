package manifests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
)

var configMapGVR = schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}

func newFakeClient(t *testing.T) *Client {
	t.Helper()

	mapper := meta.NewDefaultRESTMapper(nil)
	mapper.Add(schema.GroupVersionKind{Version: "v1", Kind: "Namespace"}, meta.RESTScopeRoot)
	mapper.Add(schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}, meta.RESTScopeNamespace)

	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), map[schema.GroupVersionResource]string{
		namespaceGVR: "NamespaceList",
		configMapGVR: "ConfigMapList",
	})

	return NewClientWith(dyn, mapper, "")
}

func TestClient_Namespaces(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient(t)

	exists, err := client.NamespaceExists(ctx, "slurm")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, client.EnsureNamespaceExists(ctx, "slurm"))
	require.NoError(t, client.EnsureNamespaceExists(ctx, "slurm"))

	exists, err = client.NamespaceExists(ctx, "slurm")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.DeleteNamespace(ctx, "slurm"))
	require.NoError(t, client.DeleteNamespace(ctx, "slurm"))

	exists, err = client.NamespaceExists(ctx, "slurm")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_ApplyManifests(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient(t)

	config := &ManifestConfig{
		Namespace: "jupyterhub",
		Sources: []ManifestSource{{
			Template: `apiVersion: v1
kind: ConfigMap
metadata:
  name: marker
data:
  deployment: "{{ .id }}"
`,
			TemplateValues: map[string]interface{}{"id": "abc"},
		}},
	}

	require.NoError(t, client.ApplyManifests(ctx, config))

	config.Sources[0].TemplateValues["id"] = "def"
	require.NoError(t, client.ApplyManifests(ctx, config))

	cm, err := client.dynamicClient.Resource(configMapGVR).Namespace("jupyterhub").Get(ctx, "marker", metav1.GetOptions{})
	require.NoError(t, err)

	data, _, _ := unstructuredString(cm.Object, "data", "deployment")
	assert.Equal(t, "def", data)
}

func TestClient_ApplyManifestsMissingTemplateValue(t *testing.T) {
	client := newFakeClient(t)

	err := client.ApplyManifests(context.Background(), &ManifestConfig{
		Sources: []ManifestSource{{Template: "name: {{ .missing }}", TemplateValues: map[string]interface{}{}}},
	})
	assert.Error(t, err)
}

func unstructuredString(obj map[string]interface{}, fields ...string) (string, bool, error) {
	cur := obj
	for i, f := range fields {
		v, ok := cur[f]
		if !ok {
			return "", false, nil
		}
		if i == len(fields)-1 {
			s, ok := v.(string)
			return s, ok, nil
		}
		cur, ok = v.(map[string]interface{})
		if !ok {
			return "", false, nil
		}
	}
	return "", false, nil
}
