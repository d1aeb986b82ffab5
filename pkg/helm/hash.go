package helm

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"helm.sh/helm/v3/pkg/release"
)

const (
	// ConfigHashKey is the values annotation holding the hash of the applied values
	ConfigHashKey = "vantagecompute.ai/config-hash"
	// ManagedByKey marks releases installed by the CLI
	ManagedByKey = "vantagecompute.ai/managed-by"
)

// ConfigHash returns a short hash of the release values, ignoring the
// annotations and labels keys
func ConfigHash(values map[string]interface{}) (string, error) {
	clean := make(map[string]interface{}, len(values))
	for k, v := range values {
		if k != "annotations" && k != "labels" {
			clean[k] = v
		}
	}

	// encoding/json sorts map keys
	data, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("failed to marshal values for hashing: %w", err)
	}

	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:8], nil
}

// AddConfigHash returns a copy of values with the config hash annotation set
func AddConfigHash(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values)+1)
	for k, v := range values {
		out[k] = v
	}

	hash, err := ConfigHash(out)
	if err != nil {
		log.Warn("Skipping config hash", "error", err)
		return out
	}

	annotations := map[string]interface{}{}
	if existing, ok := out["annotations"].(map[string]interface{}); ok {
		for k, v := range existing {
			annotations[k] = v
		}
	}
	annotations[ConfigHashKey] = hash
	annotations[ManagedByKey] = "vantage-cli"
	out["annotations"] = annotations

	log.Debug("Added config hash to release values", "hash", hash)
	return out
}

// NeedsUpdate reports whether the hashed values differ from what the release
// was last deployed with
func NeedsUpdate(newValues map[string]interface{}, existing *release.Release) bool {
	newAnnotations, ok := newValues["annotations"].(map[string]interface{})
	if !ok || newAnnotations[ConfigHashKey] == nil {
		return true
	}
	newHash := newAnnotations[ConfigHashKey]

	var oldHash interface{}
	if existing != nil && existing.Config != nil {
		if annotations, ok := existing.Config["annotations"].(map[string]interface{}); ok {
			oldHash = annotations[ConfigHashKey]
		}
	}

	if oldHash != newHash {
		log.Debug("Config hash changed", "old", oldHash, "new", newHash)
		return true
	}

	return false
}
