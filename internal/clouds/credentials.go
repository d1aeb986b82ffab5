package clouds

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

const redacted = "***"

// Credential holds the secrets used to reach a cloud provider
type Credential struct {
	ID        string                 `json:"id" yaml:"id" koanf:"id"`
	Name      string                 `json:"name" yaml:"name" koanf:"name"`
	Cloud     string                 `json:"cloud" yaml:"cloud" koanf:"cloud"`
	Provider  string                 `json:"provider" yaml:"provider" koanf:"provider"`
	Data      map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty" koanf:"data"`
	Default   bool                   `json:"default" yaml:"default" koanf:"default"`
	CreatedAt string                 `json:"created_at,omitempty" yaml:"created_at,omitempty" koanf:"created_at"`
	UpdatedAt string                 `json:"updated_at,omitempty" yaml:"updated_at,omitempty" koanf:"updated_at"`
}

// Redacted returns a copy with every data value masked
func (c Credential) Redacted() Credential {
	if len(c.Data) == 0 {
		return c
	}
	data := make(map[string]interface{}, len(c.Data))
	for k := range c.Data {
		data[k] = redacted
	}
	c.Data = data
	return c
}

// DataKeys returns the sorted keys of the credential data
func (c Credential) DataKeys() []string {
	keys := make([]string, 0, len(c.Data))
	for k := range c.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CredentialChanges is applied by CredentialStore.Update. Nil fields are
// left alone.
type CredentialChanges struct {
	Name       *string
	Data       map[string]interface{}
	SetDefault bool
}

type credentialsFile struct {
	Credentials map[string]Credential `yaml:"credentials" koanf:"credentials"`
}

// CredentialStore keeps cloud credentials in credentials.yaml
type CredentialStore struct {
	path   string
	clouds *Store
	now    func() time.Time
}

func NewCredentialStore(path string, clouds *Store) *CredentialStore {
	return &CredentialStore{path: path, clouds: clouds, now: time.Now}
}

func (s *CredentialStore) load() (map[string]Credential, error) {
	creds := map[string]Credential{}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return creds, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", s.path, err)
	}

	k := koanf.New("/")
	if err := k.Load(file.Provider(s.path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", s.path, err)
	}

	var doc credentialsFile
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	for id, c := range doc.Credentials {
		if c.Name == "" || c.Cloud == "" {
			log.Warn("Skipping incomplete credential", "id", id)
			continue
		}
		c.ID = id
		creds[id] = c
	}
	return creds, nil
}

func (s *CredentialStore) save(creds map[string]Credential) error {
	data, err := yaml.Marshal(credentialsFile{Credentials: creds})
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return config.WriteFileAtomic(s.path, data, 0o600)
}

func (s *CredentialStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Create stores a credential for the cloud named cloud. The first
// credential of a cloud becomes its default.
func (s *CredentialStore) Create(name, cloud string, data map[string]interface{}) (*Credential, error) {
	if name == "" {
		return nil, errors.New("credential name is required")
	}
	target, err := s.clouds.Get(cloud)
	if err != nil {
		return nil, err
	}

	creds, err := s.load()
	if err != nil {
		return nil, err
	}

	hasDefault := false
	for _, c := range creds {
		if c.Cloud == target.Name && c.Name == name {
			return nil, fmt.Errorf("credential %q for cloud %q: %w", name, target.Name, vantage.ErrAlreadyExists)
		}
		hasDefault = hasDefault || (c.Cloud == target.Name && c.Default)
	}

	now := s.timestamp()
	c := Credential{
		ID:        uuid.NewString(),
		Name:      name,
		Cloud:     target.Name,
		Provider:  target.Provider,
		Data:      data,
		Default:   !hasDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}

	creds[c.ID] = c
	if err := s.save(creds); err != nil {
		return nil, err
	}
	log.Debug("Created credential", "id", c.ID, "cloud", c.Cloud)
	return &c, nil
}

// Get finds a credential by id or, failing that, by name
func (s *CredentialStore) Get(idOrName string) (*Credential, error) {
	creds, err := s.load()
	if err != nil {
		return nil, err
	}
	if c, ok := creds[idOrName]; ok {
		return &c, nil
	}

	var matches []Credential
	for _, c := range creds {
		if c.Name == idOrName {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("credential %q: %w", idOrName, vantage.ErrNotFound)
	case 1:
		return &matches[0], nil
	}
	return nil, fmt.Errorf("credential name %q is used by %d clouds, use the id", idOrName, len(matches))
}

// List returns the credentials sorted by cloud and name, limited to cloud
// when it is not empty
func (s *CredentialStore) List(cloud string) ([]Credential, error) {
	creds, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([]Credential, 0, len(creds))
	for _, c := range creds {
		if cloud == "" || c.Cloud == cloud {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Cloud != result[j].Cloud {
			return result[i].Cloud < result[j].Cloud
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Default returns the default credential of cloud
func (s *CredentialStore) Default(cloud string) (*Credential, error) {
	list, err := s.List(cloud)
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		if c.Default {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("default credential for cloud %q: %w", cloud, vantage.ErrNotFound)
}

// Update applies changes to a credential. SetDefault clears the flag on the
// other credentials of the same cloud.
func (s *CredentialStore) Update(idOrName string, changes CredentialChanges) (*Credential, error) {
	current, err := s.Get(idOrName)
	if err != nil {
		return nil, err
	}

	creds, err := s.load()
	if err != nil {
		return nil, err
	}
	c := creds[current.ID]
	now := s.timestamp()

	if changes.Name != nil {
		c.Name = *changes.Name
	}
	if changes.Data != nil {
		c.Data = changes.Data
	}
	if changes.SetDefault {
		for id, other := range creds {
			if id != c.ID && other.Cloud == c.Cloud && other.Default {
				other.Default = false
				other.UpdatedAt = now
				creds[id] = other
			}
		}
		c.Default = true
	}
	c.UpdatedAt = now

	creds[c.ID] = c
	if err := s.save(creds); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a credential
func (s *CredentialStore) Delete(idOrName string) (*Credential, error) {
	current, err := s.Get(idOrName)
	if err != nil {
		return nil, err
	}

	creds, err := s.load()
	if err != nil {
		return nil, err
	}
	delete(creds, current.ID)
	if err := s.save(creds); err != nil {
		return nil, err
	}
	return current, nil
}
