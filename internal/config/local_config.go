package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig is the content of a single config.yaml, read directly from the
// file rather than through the viper singleton. Nested maps are flattened to
// dotted keys, so "api:\n  base_url: x" and "api.base_url: x" read the same.
//
// Returns an empty LocalConfig (not nil) if the file doesn't exist or can't be parsed.
type LocalConfig map[string]any

// LoadLocalConfig reads config.yaml from dir.
func LoadLocalConfig(dir string) LocalConfig {
	configPath := filepath.Join(dir, FileName)
	data, err := os.ReadFile(configPath) // #nosec G304 - config file path from dir
	if err != nil {
		return LocalConfig{}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return LocalConfig{}
	}

	cfg := LocalConfig{}
	flatten("", raw, cfg)
	return cfg
}

// Has reports whether key is set in the file.
func (c LocalConfig) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// String returns the value of key formatted as a string.
func (c LocalConfig) String(key string) string {
	value, ok := c[key]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func flatten(prefix string, in map[string]any, out LocalConfig) {
	for k, value := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = value
	}
}
