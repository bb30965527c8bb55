package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

// LoadSeed reads a YAML list of geofences. Each entry uses the same keys as
// the JSON API; unknown keys are kept on the definition.
func LoadSeed(path string) ([]domain.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}

	defs := make([]domain.Definition, 0, len(raw))
	for i, entry := range raw {
		body, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		var def domain.Definition
		if err := json.Unmarshal(body, &def); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
