// Package config loads flowctl settings with viper. Values come from, in
// increasing precedence: built-in defaults, a config file, environment
// variables and finally explicit Set calls (command-line flags).
//
// The config file is the first of:
//
//	$FLOWCTL_CONFIG
//	.flowctl/config.yaml in the working directory or any parent
//	$XDG_CONFIG_HOME/flowctl/config.yaml (~/.config/flowctl/config.yaml)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// ProjectDirName is the per-project settings directory.
	ProjectDirName = ".flowctl"
	// FileName is the config file name inside ProjectDirName or the user
	// config directory.
	FileName = "config.yaml"
)

// Setting keys.
const (
	KeyJSON                = "json"
	KeyAPIBaseURL          = "api.base_url"
	KeyAPIKey              = "api.key"
	KeyAPIAllowLocalhost   = "api.allow_localhost"
	KeyAPITimeout          = "api.timeout"
	KeyAPIRetryMaxElapsed  = "api.retry_max_elapsed"
	KeyValidateSchema      = "validate.schema"
	KeyValidateConcurrency = "validate.concurrency"
	KeyEditSkipValidation  = "edit.skip_validation"
)

// Setting describes one supported key.
type Setting struct {
	Key     string
	Default any
	Env     []string // bound environment variables, highest precedence first
	Secret  bool
	Help    string
}

// Settings lists every supported key.
var Settings = []Setting{
	{Key: KeyJSON, Default: false, Env: []string{"FLOWCTL_JSON"}, Help: "print JSON envelopes instead of styled text"},
	{Key: KeyAPIBaseURL, Default: "", Env: []string{"FLOWCTL_API_BASE_URL", "KAPSO_API_BASE_URL"}, Help: "workflow platform API base URL"},
	{Key: KeyAPIKey, Default: "", Env: []string{"FLOWCTL_API_KEY", "KAPSO_API_KEY"}, Secret: true, Help: "API key sent as X-API-Key"},
	{Key: KeyAPIAllowLocalhost, Default: false, Env: []string{"FLOWCTL_API_ALLOW_LOCALHOST", "KAPSO_API_ALLOW_LOCALHOST"}, Help: "permit a localhost base URL"},
	{Key: KeyAPITimeout, Default: 30 * time.Second, Env: []string{"FLOWCTL_API_TIMEOUT"}, Help: "per-request timeout"},
	{Key: KeyAPIRetryMaxElapsed, Default: 15 * time.Second, Env: []string{"FLOWCTL_API_RETRY_MAX_ELAPSED"}, Help: "total retry budget for reads (0 disables)"},
	{Key: KeyValidateSchema, Default: "", Env: []string{"FLOWCTL_VALIDATE_SCHEMA"}, Help: "JSON Schema applied on top of the graph rules"},
	{Key: KeyValidateConcurrency, Default: 4, Env: []string{"FLOWCTL_VALIDATE_CONCURRENCY"}, Help: "parallel fetches for validate-graph"},
	{Key: KeyEditSkipValidation, Default: false, Env: []string{"FLOWCTL_EDIT_SKIP_VALIDATION"}, Help: "submit edits the validator rejects"},
}

var v *viper.Viper

// Initialize (re)builds the configuration. It must be called before any
// getter; calling it again discards values set with Set.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	for _, s := range Settings {
		v.SetDefault(s.Key, s.Default)
		args := append([]string{s.Key}, s.Env...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", s.Key, err)
		}
	}
	v.SetEnvPrefix("FLOWCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile()
	if err != nil {
		return err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return nil
}

// ResetForTesting clears the loaded configuration.
func ResetForTesting() {
	v = nil
}

func findConfigFile() (string, error) {
	if explicit := os.Getenv("FLOWCTL_CONFIG"); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("FLOWCTL_CONFIG: %w", err)
		}
		return explicit, nil
	}
	if path, err := findProjectConfigYaml(); err == nil {
		return path, nil
	}
	if dir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(dir, "flowctl", FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a value for the rest of the process, typically from a flag.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// Lookup returns the Setting for key.
func Lookup(key string) (Setting, bool) {
	for _, s := range Settings {
		if s.Key == key {
			return s, true
		}
	}
	return Setting{}, false
}

// Source names where the effective value of key comes from: "env",
// "file", or "default". Values from Set are reported by their origin.
func Source(key string) string {
	s, ok := Lookup(key)
	if ok {
		for _, name := range s.Env {
			if _, set := os.LookupEnv(name); set {
				return "env"
			}
		}
	}
	if path := ConfigFileUsed(); path != "" {
		if LoadLocalConfig(filepath.Dir(path)).Has(key) {
			return "file"
		}
	}
	return "default"
}

// Entry is one row of Effective.
type Entry struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

// Effective returns every supported key with its current value, sorted by
// key. Secret values are redacted.
func Effective() []Entry {
	entries := make([]Entry, 0, len(Settings))
	for _, s := range Settings {
		var value any
		if v != nil {
			value = v.Get(s.Key)
		}
		if _, ok := s.Default.(time.Duration); ok {
			value = GetDuration(s.Key).String()
		}
		if s.Secret {
			value = Redact(GetString(s.Key))
		}
		entries = append(entries, Entry{Key: s.Key, Value: value, Source: Source(s.Key)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Redact masks all but the last four characters of a secret.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
