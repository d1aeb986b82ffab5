// Package clouds keeps the catalog of clouds deployments can target: the
// built-in providers plus user clouds stored in clouds.json.
package clouds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

// ErrBuiltIn is returned when changing a built-in cloud
var ErrBuiltIn = errors.New("built-in clouds cannot be modified")

// Provider labels understood by the cluster API
const (
	ProviderOnPrem = "on_prem"
	ProviderAWS    = "aws"
	ProviderGCP    = "gcp"
	ProviderAzure  = "azure"
)

// Cloud is a deployment target
type Cloud struct {
	Name       string                 `json:"name" koanf:"name"`
	Provider   string                 `json:"provider" koanf:"provider"`
	Region     string                 `json:"region,omitempty" koanf:"region"`
	Substrates []string               `json:"substrates" koanf:"substrates"`
	Enabled    bool                   `json:"enabled" koanf:"enabled"`
	BuiltIn    bool                   `json:"built_in" koanf:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" koanf:"metadata"`
	CreatedAt  string                 `json:"created_at,omitempty" koanf:"created_at"`
	UpdatedAt  string                 `json:"updated_at,omitempty" koanf:"updated_at"`
}

// BuiltIn returns the clouds every installation knows about
func BuiltIn() []Cloud {
	return []Cloud{
		{Name: "localhost", Provider: ProviderOnPrem, Substrates: []string{"multipass", "lxd", "microk8s"}},
		{Name: "aws", Provider: ProviderAWS, Substrates: []string{"eks", "ec2"}},
		{Name: "gcp", Provider: ProviderGCP, Substrates: []string{"gke", "gce"}},
		{Name: "azure", Provider: ProviderAzure, Substrates: []string{"aks", "vm"}},
		{Name: "on-premises", Provider: ProviderOnPrem, Substrates: []string{"metal", "k8s"}},
		{Name: "cudo-compute", Provider: ProviderOnPrem, Substrates: []string{"metal", "k8s"}},
	}
}

func builtInByName() map[string]Cloud {
	m := map[string]Cloud{}
	for _, c := range BuiltIn() {
		c.BuiltIn = true
		c.Enabled = true
		m[c.Name] = c
	}
	return m
}

// Store merges the built-in catalog with user clouds
type Store struct {
	path string
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) load() (map[string]Cloud, error) {
	clouds := map[string]Cloud{}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return clouds, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", s.path, err)
	}

	k := koanf.New("/")
	if err := k.Load(file.Provider(s.path), kjson.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", s.path, err)
	}
	if err := k.Unmarshal("", &clouds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clouds: %w", err)
	}

	for name, c := range clouds {
		c.Name = name
		clouds[name] = c
	}
	return clouds, nil
}

func (s *Store) save(clouds map[string]Cloud) error {
	data, err := json.MarshalIndent(clouds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal clouds: %w", err)
	}
	return config.WriteFileAtomic(s.path, data, 0o600)
}

// List returns every cloud sorted by name. Disabled clouds are left out
// unless all is set.
func (s *Store) List(all bool) ([]Cloud, error) {
	user, err := s.load()
	if err != nil {
		return nil, err
	}

	merged := builtInByName()
	for name, c := range user {
		if _, ok := merged[name]; ok {
			log.Warn("Ignoring user cloud that shadows a built-in one", "name", name)
			continue
		}
		merged[name] = c
	}

	result := make([]Cloud, 0, len(merged))
	for _, c := range merged {
		if all || c.Enabled {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) Get(name string) (*Cloud, error) {
	if c, ok := builtInByName()[name]; ok {
		return &c, nil
	}

	user, err := s.load()
	if err != nil {
		return nil, err
	}
	c, ok := user[name]
	if !ok {
		return nil, fmt.Errorf("cloud %q: %w", name, vantage.ErrNotFound)
	}
	return &c, nil
}

// Substrates lists the substrates of a cloud, empty when it is unknown
func (s *Store) Substrates(name string) []string {
	c, err := s.Get(name)
	if err != nil {
		return nil
	}
	return c.Substrates
}

// Add stores a new user cloud
func (s *Store) Add(c Cloud) (*Cloud, error) {
	if c.Name == "" {
		return nil, errors.New("cloud name is required")
	}
	if _, ok := builtInByName()[c.Name]; ok {
		return nil, fmt.Errorf("cloud %q: %w", c.Name, vantage.ErrAlreadyExists)
	}

	user, err := s.load()
	if err != nil {
		return nil, err
	}
	if _, ok := user[c.Name]; ok {
		return nil, fmt.Errorf("cloud %q: %w", c.Name, vantage.ErrAlreadyExists)
	}

	if c.Provider == "" {
		c.Provider = ProviderOnPrem
	}
	now := s.now().UTC().Format(time.RFC3339)
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Enabled = true
	c.BuiltIn = false

	user[c.Name] = c
	if err := s.save(user); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update applies the non-empty fields of changes to a user cloud
func (s *Store) Update(name string, changes Cloud, enabled *bool) (*Cloud, error) {
	if _, ok := builtInByName()[name]; ok {
		return nil, fmt.Errorf("cloud %q: %w", name, ErrBuiltIn)
	}

	user, err := s.load()
	if err != nil {
		return nil, err
	}
	c, ok := user[name]
	if !ok {
		return nil, fmt.Errorf("cloud %q: %w", name, vantage.ErrNotFound)
	}

	if changes.Provider != "" {
		c.Provider = changes.Provider
	}
	if changes.Region != "" {
		c.Region = changes.Region
	}
	if len(changes.Substrates) > 0 {
		c.Substrates = changes.Substrates
	}
	for k, v := range changes.Metadata {
		if c.Metadata == nil {
			c.Metadata = map[string]interface{}{}
		}
		c.Metadata[k] = v
	}
	if enabled != nil {
		c.Enabled = *enabled
	}
	c.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	user[name] = c
	if err := s.save(user); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a user cloud
func (s *Store) Delete(name string) error {
	if _, ok := builtInByName()[name]; ok {
		return fmt.Errorf("cloud %q: %w", name, ErrBuiltIn)
	}

	user, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := user[name]; !ok {
		return fmt.Errorf("cloud %q: %w", name, vantage.ErrNotFound)
	}

	delete(user, name)
	return s.save(user)
}
