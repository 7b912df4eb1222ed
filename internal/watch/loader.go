package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfigsFromFile reads watch definitions from a JSON or YAML file. Each
// definition is validated before being returned.
func LoadConfigsFromFile(path string) ([]*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading watch definitions: %w", err)
	}

	var configs []*Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &configs); err != nil {
			return nil, fmt.Errorf("parsing watch definitions %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configs); err != nil {
			return nil, fmt.Errorf("parsing watch definitions %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported watch definitions format: %s", path)
	}

	for i, cfg := range configs {
		if cfg.ID == "" {
			cfg.ID = fmt.Sprintf("watch-%d", i)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("watch %q: %w", cfg.ID, err)
		}
	}
	return configs, nil
}
