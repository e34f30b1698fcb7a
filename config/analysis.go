package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ytcbot/internal/strategy"
)

// LoadAnalysisConfig reads analyzer tuning from a YAML file. Keys missing from
// the file keep their defaults; an empty path returns the defaults unchanged.
func LoadAnalysisConfig(path string) (strategy.Config, error) {
	cfg := strategy.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read analysis config '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse analysis config '%s': %w", path, err)
	}
	for _, t := range cfg.Setups.EnabledTypes {
		if !t.IsValid() {
			return cfg, fmt.Errorf("analysis config '%s' enables unknown setup type %q", path, t)
		}
	}
	return cfg, nil
}
