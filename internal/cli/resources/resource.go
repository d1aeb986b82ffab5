// Package resources describes the REST resource kinds of the Vantage API
// that share the same create/get/list/update/delete command shape.
package resources

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/pkg/api"
)

const none = "<none>"

// Column maps a record field to a table column
type Column struct {
	Header string
	// Field is a dotted path into the record, e.g. "owner.email"
	Field string
}

// Kind is a REST resource family
type Kind struct {
	// Group is the parent command, e.g. "license". Empty for top-level kinds.
	Group string

	// Name is the command name, e.g. "server"
	Name string

	Aliases []string
	Short   string

	// Endpoint is the collection path relative to the API base URL
	Endpoint string

	// IDField names the field that identifies a record, "id" when empty
	IDField string

	Columns []Column

	// Fields become create and update flags
	Fields []Field

	// Unnamed kinds do not require a name on create
	Unnamed bool

	// Attachable kinds get attach and detach commands
	Attachable bool
}

// Key is the registry key of a kind, "group/name" or "name"
func (k *Kind) Key() string {
	if k.Group == "" {
		return k.Name
	}
	return k.Group + "/" + k.Name
}

// ItemPath is the path of a single record
func (k *Kind) ItemPath(id string) string {
	return strings.TrimRight(k.Endpoint, "/") + "/" + url.PathEscape(id)
}

// ActionPath is the path of an action on a single record
func (k *Kind) ActionPath(id, action string) string {
	return k.ItemPath(id) + "/" + action
}

// ID returns the identifier of a record
func (k *Kind) ID(record api.Record) string {
	field := k.IDField
	if field == "" {
		field = "id"
	}
	return Cell(record, field)
}

// Table converts records to a table with the kind's columns
func (k *Kind) Table(records []api.Record) *metav1.Table {
	columns := make([]metav1.TableColumnDefinition, 0, len(k.Columns))
	for _, c := range k.Columns {
		columns = append(columns, metav1.TableColumnDefinition{Name: c.Header, Type: "string"})
	}

	rows := make([]metav1.TableRow, 0, len(records))
	for _, record := range records {
		cells := make([]interface{}, 0, len(k.Columns))
		for _, c := range k.Columns {
			cells = append(cells, Cell(record, c.Field))
		}
		rows = append(rows, metav1.TableRow{Cells: cells})
	}

	return &metav1.Table{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Table",
			APIVersion: "meta.k8s.io/v1",
		},
		ColumnDefinitions: columns,
		Rows:              rows,
	}
}

// Cell renders a field of a record for a table cell
func Cell(record api.Record, field string) string {
	var current interface{} = map[string]interface{}(record)
	for _, part := range strings.Split(field, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return none
		}
		if current, ok = m[part]; !ok {
			return none
		}
	}

	switch v := current.(type) {
	case nil:
		return none
	case string:
		if v == "" {
			return none
		}
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		if len(parts) == 0 {
			return none
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

// Registry holds the kinds by key and alias
type Registry struct {
	kinds map[string]*Kind
}

func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]*Kind),
	}
}

// Register adds a kind. Aliases are registered within the same group.
func (r *Registry) Register(kind *Kind) error {
	keys := []string{kind.Key()}
	for _, alias := range kind.Aliases {
		keys = append(keys, (&Kind{Group: kind.Group, Name: alias}).Key())
	}

	for _, key := range keys {
		if _, exists := r.kinds[key]; exists {
			return fmt.Errorf("resource %s already registered", key)
		}
	}
	for _, key := range keys {
		r.kinds[key] = kind
	}
	return nil
}

// Get retrieves a kind by group and name or alias
func (r *Registry) Get(group, name string) (*Kind, error) {
	kind, ok := r.kinds[(&Kind{Group: group, Name: name}).Key()]
	if !ok {
		return nil, fmt.Errorf("resource %s not found", (&Kind{Group: group, Name: name}).Key())
	}
	return kind, nil
}

// List returns the kinds of a group sorted by name. Aliases are not repeated.
func (r *Registry) List(group string) []*Kind {
	var kinds []*Kind
	for key, kind := range r.kinds {
		if kind.Group == group && key == kind.Key() {
			kinds = append(kinds, kind)
		}
	}

	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].Name < kinds[j].Name
	})
	return kinds
}

// Groups returns the distinct non-empty groups, sorted
func (r *Registry) Groups() []string {
	seen := map[string]bool{}
	var groups []string
	for _, kind := range r.kinds {
		if kind.Group != "" && !seen[kind.Group] {
			seen[kind.Group] = true
			groups = append(groups, kind.Group)
		}
	}
	sort.Strings(groups)
	return groups
}
