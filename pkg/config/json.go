package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadJSON decodes a JSON file into target
func LoadJSON(path string, target interface{}) error {
	// #nosec G304 -- the path comes from the operator's -config flag.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
