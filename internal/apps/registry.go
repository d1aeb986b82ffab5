package apps

import (
	"fmt"
	"sort"
)

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Cloud     string
	Substrate string
}

// Registry manages all available apps
type Registry struct {
	apps map[string]App
}

// NewRegistry creates a new app registry
func NewRegistry() *Registry {
	return &Registry{
		apps: make(map[string]App),
	}
}

// Register adds an app to the registry
func (r *Registry) Register(app App) error {
	name := app.Name()
	if _, exists := r.apps[name]; exists {
		return fmt.Errorf("app %s already registered", name)
	}
	r.apps[name] = app
	return nil
}

// Get retrieves an app by name
func (r *Registry) Get(name string) (App, error) {
	app, exists := r.apps[name]
	if !exists {
		return nil, fmt.Errorf("app %s not found", name)
	}
	return app, nil
}

// List returns the apps matching filter sorted by name
func (r *Registry) List(filter Filter) []App {
	apps := make([]App, 0, len(r.apps))
	for _, app := range r.apps {
		if filter.Cloud != "" && app.Cloud() != filter.Cloud {
			continue
		}
		if filter.Substrate != "" && app.Substrate() != filter.Substrate {
			continue
		}
		apps = append(apps, app)
	}

	sort.Slice(apps, func(i, j int) bool {
		return apps[i].Name() < apps[j].Name()
	})
	return apps
}

// Names returns every registered app name, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clouds returns the distinct clouds apps target
func (r *Registry) Clouds() []string {
	return r.distinct(App.Cloud)
}

// Substrates returns the distinct substrates apps run on
func (r *Registry) Substrates() []string {
	return r.distinct(App.Substrate)
}

func (r *Registry) distinct(field func(App) string) []string {
	seen := map[string]bool{}
	var values []string
	for _, app := range r.apps {
		v := field(app)
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values
}

// DefaultRegistry creates a registry with all default apps
func DefaultRegistry() *Registry {
	registry := NewRegistry()

	for _, app := range []App{
		NewSlurmMultipass(),
		NewSlurmJuju(),
		NewSlurmMicroK8s(),
		NewJupyterHubMicroK8s(),
	} {
		if err := registry.Register(app); err != nil {
			panic(err)
		}
	}

	return registry
}
