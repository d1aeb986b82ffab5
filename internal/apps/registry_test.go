package apps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantagecompute/vantage-cli/internal/process"
)

// fakeApp records the requests it receives
type fakeApp struct {
	info

	deployErr error
	removeErr error
	deployed  []*Request
	removed   []*Request
}

func newFakeApp(name, cloud, substrate string) *fakeApp {
	return &fakeApp{info: info{name: name, cloud: cloud, substrate: substrate}}
}

func (a *fakeApp) Prerequisites() []process.Prerequisite {
	return nil
}

func (a *fakeApp) Deploy(_ context.Context, req *Request) error {
	a.deployed = append(a.deployed, req)
	return a.deployErr
}

func (a *fakeApp) Remove(_ context.Context, req *Request) error {
	a.removed = append(a.removed, req)
	return a.removeErr
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newFakeApp("one", "", "")))
	err := registry.Register(newFakeApp("one", "", ""))
	assert.EqualError(t, err, "app one already registered")

	_, err = registry.Get("two")
	assert.EqualError(t, err, "app two not found")

	app, err := registry.Get("one")
	require.NoError(t, err)
	assert.Equal(t, "one", app.Name())
}

func TestRegistry_List(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newFakeApp("zeta", "aws", "eks")))
	require.NoError(t, registry.Register(newFakeApp("alpha", "localhost", "microk8s")))
	require.NoError(t, registry.Register(newFakeApp("beta", "localhost", "lxd")))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "all", want: []string{"alpha", "beta", "zeta"}},
		{name: "by cloud", filter: Filter{Cloud: "localhost"}, want: []string{"alpha", "beta"}},
		{name: "by substrate", filter: Filter{Substrate: "eks"}, want: []string{"zeta"}},
		{name: "no match", filter: Filter{Cloud: "gcp"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, app := range registry.List(tt.filter) {
				got = append(got, app.Name())
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"aws", "localhost"}, registry.Clouds())
	assert.Equal(t, []string{"eks", "lxd", "microk8s"}, registry.Substrates())
}

func TestInfo_Defaults(t *testing.T) {
	app := newFakeApp("bare", "", "")

	assert.Equal(t, "localhost", app.Cloud())
	assert.Equal(t, "unknown", app.Substrate())
	assert.Equal(t, "No documentation available", app.Description())
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	assert.Equal(t, []string{
		JupyterHubMicroK8sName,
		SlurmJujuName,
		SlurmMicroK8sName,
		SlurmMultipassName,
	}, registry.Names())

	for _, app := range registry.List(Filter{}) {
		assert.Equal(t, "localhost", app.Cloud(), app.Name())
		assert.NotEqual(t, defaultDescription, app.Description(), app.Name())
		assert.NotEmpty(t, app.Prerequisites(), app.Name())
	}

	microk8s := registry.List(Filter{Substrate: "microk8s"})
	assert.Len(t, microk8s, 2)
}
