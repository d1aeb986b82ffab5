package deployments

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vantagecompute/vantage-cli/internal/config"
)

var (
	// ErrNotFound is returned when no deployment matches
	ErrNotFound = errors.New("deployment not found")
	// ErrNameTaken is returned when a deployment with the same name exists
	ErrNameTaken = errors.New("deployment name already in use")
)

type document struct {
	Deployments map[string]json.RawMessage `json:"deployments"`
}

// records is the parsed document. Entries that failed to parse are kept
// raw and written back untouched.
type records struct {
	parsed    map[string]*Deployment
	malformed map[string]json.RawMessage
}

// Store persists deployments in a single JSON document keyed by id
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) load() (*records, error) {
	recs := &records{
		parsed:    map[string]*Deployment{},
		malformed: map[string]json.RawMessage{},
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return recs, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	for id, raw := range doc.Deployments {
		var d Deployment
		if err := json.Unmarshal(raw, &d); err != nil {
			log.Warn("Skipping malformed deployment record", "id", id, "error", err)
			recs.malformed[id] = raw
			continue
		}
		if d.ID == "" {
			d.ID = id
		}
		d.fillDefaults()
		recs.parsed[id] = &d
	}

	return recs, nil
}

func (s *Store) save(recs *records) error {
	doc := document{Deployments: make(map[string]json.RawMessage, len(recs.parsed)+len(recs.malformed))}
	for id, raw := range recs.malformed {
		doc.Deployments[id] = raw
	}
	for id, d := range recs.parsed {
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal deployment %s: %w", id, err)
		}
		doc.Deployments[id] = raw
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal deployments: %w", err)
	}

	return config.WriteFileAtomic(s.path, data, 0o600)
}

// update loads, applies fn to the record with id and saves
func (s *Store) update(id string, fn func(d *Deployment)) (*Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}

	d, ok := recs.parsed[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	fn(d)
	d.UpdatedAt = s.now().UTC()

	if err := s.save(recs); err != nil {
		return nil, err
	}
	return d, nil
}

// Create assigns an id and timestamps and stores d with status init unless
// a status is already set. Names are unique since Get resolves them.
func (s *Store) Create(d *Deployment) (*Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if _, exists := recs.parsed[d.ID]; exists {
		return nil, fmt.Errorf("deployment %s already exists", d.ID)
	}
	if _, exists := recs.malformed[d.ID]; exists {
		return nil, fmt.Errorf("deployment %s already exists", d.ID)
	}
	if d.Name != "" {
		for _, other := range recs.parsed {
			if other.Name == d.Name {
				return nil, fmt.Errorf("%w: %s", ErrNameTaken, d.Name)
			}
		}
	}
	if d.Status == "" {
		d.Status = StatusInit
	}

	now := s.now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.fillDefaults()

	recs.parsed[d.ID] = d
	if err := s.save(recs); err != nil {
		return nil, err
	}

	log.Debug("Created deployment record", "id", d.ID, "name", d.Name, "app", d.AppName)
	return d, nil
}

// Get returns a deployment by id or, failing that, by name
func (s *Store) Get(idOrName string) (*Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}

	if d, ok := recs.parsed[idOrName]; ok {
		return d, nil
	}
	for _, d := range recs.parsed {
		if d.Name == idOrName {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrName)
}

// GetByCluster returns the most recent deployment on a cluster
func (s *Store) GetByCluster(cluster string) (*Deployment, error) {
	all, err := s.List(Filter{})
	if err != nil {
		return nil, err
	}

	for i := len(all) - 1; i >= 0; i-- {
		if all[i].ClusterName == cluster {
			return all[i], nil
		}
	}

	return nil, fmt.Errorf("%w: cluster %s", ErrNotFound, cluster)
}

// List returns matching deployments oldest first
func (s *Store) List(filter Filter) ([]*Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([]*Deployment, 0, len(recs.parsed))
	for _, d := range recs.parsed {
		if filter.matches(d) {
			result = append(result, d)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// UpdateStatus sets the status and bumps updated_at
func (s *Store) UpdateStatus(id string, status Status) (*Deployment, error) {
	return s.update(id, func(d *Deployment) {
		log.Debug("Deployment status changed", "id", id, "from", d.Status, "to", status)
		d.Status = status
	})
}

// SetMetadata merges values into the deployment metadata
func (s *Store) SetMetadata(id string, values map[string]interface{}) (*Deployment, error) {
	return s.update(id, func(d *Deployment) {
		if d.Metadata == nil {
			d.Metadata = map[string]interface{}{}
		}
		for k, v := range values {
			d.Metadata[k] = v
		}
	})
}

// AddNamespace records a Kubernetes namespace the deployment created
func (s *Store) AddNamespace(id, namespace string) (*Deployment, error) {
	return s.update(id, func(d *Deployment) {
		for _, ns := range d.K8sNamespaces {
			if ns == namespace {
				return
			}
		}
		d.K8sNamespaces = append(d.K8sNamespaces, namespace)
	})
}

// MarkDeleted keeps the record with status deleted
func (s *Store) MarkDeleted(id string) (*Deployment, error) {
	return s.UpdateStatus(id, StatusDeleted)
}

// Remove drops the record
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := recs.parsed[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(recs.parsed, id)
	return s.save(recs)
}
