package platform

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Default request settings.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultRetryMaxElapsed = 15 * time.Second
)

// ErrMissingConfig is returned when the base URL or API key is unset.
var ErrMissingConfig = errors.New("platform: missing configuration")

// Config holds the connection settings for the workflow platform API.
type Config struct {
	BaseURL         string
	APIKey          string
	AllowLocalhost  bool
	Timeout         time.Duration
	RetryMaxElapsed time.Duration // zero disables GET retries
}

// Validate normalizes c in place and reports settings the client cannot use.
// Localhost targets are refused unless AllowLocalhost is set.
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url (KAPSO_API_BASE_URL) is not set", ErrMissingConfig)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: api.key (KAPSO_API_KEY) is not set", ErrMissingConfig)
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base URL: %s", c.BaseURL)
	}
	if !c.AllowLocalhost && isLocalhost(u.Hostname()) {
		return fmt.Errorf("api base URL points to localhost (%s); set api.allow_localhost (KAPSO_API_ALLOW_LOCALHOST=true) if this is intentional", u.Hostname())
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryMaxElapsed < 0 {
		c.RetryMaxElapsed = 0
	}
	return nil
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}
