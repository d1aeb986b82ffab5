package resources

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseSet turns key=value pairs into a payload. Values are decoded as YAML
// scalars so numbers and booleans keep their type; dotted keys nest.
func ParseSet(pairs []string) (map[string]interface{}, error) {
	payload := map[string]interface{}{}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}

		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}

		setPath(payload, strings.Split(key, "."), value)
	}

	return payload, nil
}

func setPath(m map[string]interface{}, path []string, value interface{}) {
	for _, part := range path[:len(path)-1] {
		next, ok := m[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			m[part] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// LoadFile reads a JSON or YAML document holding a payload
func LoadFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	payload := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return payload, nil
}
