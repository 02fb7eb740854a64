package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/flowctl/flowctl/internal/lockfile"
)

// SetYamlConfig sets a configuration value in the project's config.yaml,
// creating .flowctl/config.yaml in the working directory when no project
// file exists yet. It returns the path written.
// It handles both adding new keys and updating existing (possibly commented) keys.
func SetYamlConfig(key, value string) (string, error) {
	if _, ok := Lookup(key); !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}

	configPath, err := findProjectConfigYaml()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return "", fmt.Errorf("failed to get working directory: %w", cwdErr)
		}
		configPath = filepath.Join(cwd, ProjectDirName, FileName)
		if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", ProjectDirName, err)
		}
	}

	release, err := lockfile.Lock(configPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = release() }()

	// Read existing config
	content, err := os.ReadFile(configPath) //nolint:gosec // configPath is from findProjectConfigYaml
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read config.yaml: %w", err)
	}

	newContent := updateYamlKey(string(content), key, value)

	// Write back
	if err := os.WriteFile(configPath, []byte(newContent+"\n"), 0600); err != nil { //nolint:gosec // configPath is validated
		return "", fmt.Errorf("failed to write config.yaml: %w", err)
	}

	return configPath, nil
}

// findProjectConfigYaml finds the project's .flowctl/config.yaml file.
func findProjectConfigYaml() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	// Walk up parent directories to find .flowctl/config.yaml
	for dir := cwd; ; dir = filepath.Dir(dir) {
		configPath := filepath.Join(dir, ProjectDirName, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	return "", fmt.Errorf("no %s/%s found", ProjectDirName, FileName)
}

// updateYamlKey updates a key in yaml content, handling commented-out keys.
// If the key exists (commented or not), it updates it in place.
// If the key doesn't exist, it appends it at the end.
func updateYamlKey(content, key, value string) string {
	// Format the value appropriately
	formattedValue := formatYamlValue(value)
	newLine := fmt.Sprintf("%s: %s", key, formattedValue)

	// Build regex to match the key (commented or not)
	// Matches: "key: value" or "# key: value" with optional leading whitespace
	keyPattern := regexp.MustCompile(`^(\s*)(#\s*)?` + regexp.QuoteMeta(key) + `\s*:`)

	found := false
	var result []string

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if keyPattern.MatchString(line) {
			// Found the key - replace with new value (uncommented)
			// Preserve leading whitespace
			matches := keyPattern.FindStringSubmatch(line)
			indent := ""
			if len(matches) > 1 {
				indent = matches[1]
			}
			result = append(result, indent+newLine)
			found = true
		} else {
			result = append(result, line)
		}
	}

	if !found {
		// Key not found - append at end
		// Add blank line before if content doesn't end with one
		if len(result) > 0 && result[len(result)-1] != "" {
			result = append(result, "")
		}
		result = append(result, newLine)
	}

	return strings.Join(result, "\n")
}

// formatYamlValue formats a value appropriately for YAML.
func formatYamlValue(value string) string {
	// Boolean values
	lower := strings.ToLower(value)
	if lower == "true" || lower == "false" {
		return lower
	}

	// Numeric values - return as-is
	if isNumeric(value) {
		return value
	}

	// Duration values (like "30s", "5m") - return as-is
	if isDuration(value) {
		return value
	}

	// String values that need quoting
	if needsQuoting(value) {
		return fmt.Sprintf("%q", value)
	}

	return value
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '-' && i == 0 {
			continue
		}
		if c == '.' {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDuration(s string) bool {
	if len(s) < 2 {
		return false
	}
	suffix := s[len(s)-1]
	if suffix != 's' && suffix != 'm' && suffix != 'h' {
		return false
	}
	return isNumeric(s[:len(s)-1])
}

func needsQuoting(s string) bool {
	// Quote if contains special YAML characters
	special := []string{":", "#", "[", "]", "{", "}", ",", "&", "*", "!", "|", ">", "'", "\"", "%", "@", "`"}
	for _, c := range special {
		if strings.Contains(s, c) {
			return true
		}
	}
	// Quote if starts/ends with whitespace
	if strings.TrimSpace(s) != s {
		return true
	}
	return false
}
