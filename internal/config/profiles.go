package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	// ErrProfileNotFound is returned when a profile does not exist
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists is returned when creating a profile that already exists
	ErrProfileExists = errors.New("profile already exists")
	// ErrDefaultProfile is returned when deleting the default profile without force
	ErrDefaultProfile = errors.New("the default profile cannot be deleted without --force")

	profileNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
)

// Profile is a named settings bundle
type Profile struct {
	Name     string   `json:"name"`
	Settings Settings `json:"settings"`
	Active   bool     `json:"is_active"`
}

// ProfileStore persists profiles in config.json keyed by profile name
type ProfileStore struct {
	paths Paths
}

func NewProfileStore(paths Paths) *ProfileStore {
	return &ProfileStore{paths: paths}
}

// Paths returns the file layout the store writes to
func (s *ProfileStore) Paths() Paths {
	return s.paths
}

// ValidateName checks that a profile name is usable as a file name and a
// configuration key
func ValidateName(name string) error {
	if !profileNameRe.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: use letters, digits, '-' and '_'", name)
	}
	return nil
}

func (s *ProfileStore) load() (map[string]Settings, error) {
	profiles := map[string]Settings{}

	path := s.paths.ConfigFile()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return profiles, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to check config file: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	if err := k.Unmarshal("", &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profiles: %w", err)
	}

	return profiles, nil
}

func (s *ProfileStore) save(profiles map[string]Settings) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	return WriteFileAtomic(s.paths.ConfigFile(), data, 0o600)
}

// Create stores a new profile. An existing profile is only replaced when
// force is set.
func (s *ProfileStore) Create(name string, settings Settings, force, activate bool) (*Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	profiles, err := s.load()
	if err != nil {
		return nil, err
	}

	if _, exists := profiles[name]; exists && !force {
		return nil, fmt.Errorf("%w: %s", ErrProfileExists, name)
	}

	merged, err := settings.WithDefaults()
	if err != nil {
		return nil, err
	}
	profiles[name] = merged

	if err := s.save(profiles); err != nil {
		return nil, err
	}
	log.Debug("saved profile", "name", name)

	if activate {
		if err := s.Activate(name); err != nil {
			return nil, err
		}
	}

	return s.Get(name)
}

// Get returns a profile by name
func (s *ProfileStore) Get(name string) (*Profile, error) {
	profiles, err := s.load()
	if err != nil {
		return nil, err
	}

	settings, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	settings, err = settings.WithDefaults()
	if err != nil {
		return nil, err
	}

	return &Profile{
		Name:     name,
		Settings: settings,
		Active:   s.Active() == name,
	}, nil
}

// List returns all profiles sorted by name
func (s *ProfileStore) List() ([]Profile, error) {
	profiles, err := s.load()
	if err != nil {
		return nil, err
	}

	active := s.Active()
	result := make([]Profile, 0, len(profiles))
	for name, settings := range profiles {
		settings, err := settings.WithDefaults()
		if err != nil {
			return nil, err
		}
		result = append(result, Profile{Name: name, Settings: settings, Active: name == active})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// Update changes the non-empty fields of an existing profile
func (s *ProfileStore) Update(name string, changes Settings) (*Profile, error) {
	profiles, err := s.load()
	if err != nil {
		return nil, err
	}

	current, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	if changes.APIBaseURL != "" {
		current.APIBaseURL = changes.APIBaseURL
	}
	if changes.OIDCBaseURL != "" {
		current.OIDCBaseURL = changes.OIDCBaseURL
	}
	if changes.TunnelAPIURL != "" {
		current.TunnelAPIURL = changes.TunnelAPIURL
	}
	if changes.OIDCClientID != "" {
		current.OIDCClientID = changes.OIDCClientID
	}
	if changes.OIDCMaxPollTime > 0 {
		current.OIDCMaxPollTime = changes.OIDCMaxPollTime
	}
	if len(changes.SupportedClouds) > 0 {
		current.SupportedClouds = changes.SupportedClouds
	}

	profiles[name] = current
	if err := s.save(profiles); err != nil {
		return nil, err
	}

	return s.Get(name)
}

// Delete removes a profile and its token cache
func (s *ProfileStore) Delete(name string, force bool) error {
	if name == DefaultProfile && !force {
		return ErrDefaultProfile
	}

	profiles, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	delete(profiles, name)
	if err := s.save(profiles); err != nil {
		return err
	}

	if err := os.RemoveAll(s.paths.TokenCacheDir(name)); err != nil {
		log.Warn("failed to clear token cache", "profile", name, "error", err)
	}

	if s.Active() == name {
		if err := os.Remove(s.paths.ActiveProfileFile()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to reset active profile: %w", err)
		}
	}

	return nil
}

// Activate makes name the active profile
func (s *ProfileStore) Activate(name string) error {
	profiles, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	return WriteFileAtomic(s.paths.ActiveProfileFile(), []byte(name+"\n"), 0o600)
}

// Active returns the active profile name, falling back to the default one
func (s *ProfileStore) Active() string {
	data, err := os.ReadFile(s.paths.ActiveProfileFile())
	if err != nil {
		return DefaultProfile
	}

	name := strings.TrimSpace(string(data))
	if name == "" {
		return DefaultProfile
	}
	return name
}

// EnsureDefault creates the base directory and the default profile when
// they do not exist yet
func (s *ProfileStore) EnsureDefault() error {
	if err := os.MkdirAll(s.paths.Base, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.paths.Base, err)
	}

	profiles, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := profiles[DefaultProfile]; ok {
		return nil
	}

	log.Debug("creating default profile", "path", s.paths.ConfigFile())
	profiles[DefaultProfile] = DefaultSettings()
	return s.save(profiles)
}

// Settings returns the effective settings of a profile, environment
// overrides applied
func (s *ProfileStore) Settings(name string) (*Settings, error) {
	profile, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	settings := profile.Settings
	settings.applyEnv()
	return &settings, nil
}

// Clear removes every file the CLI has written
func (s *ProfileStore) Clear() error {
	return os.RemoveAll(s.paths.Base)
}

// WriteFileAtomic writes to a temporary file in the same directory and
// renames it over path
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
