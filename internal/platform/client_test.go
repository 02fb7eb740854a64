package platform

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/flowdef"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:         srv.URL,
		APIKey:          "test-key",
		AllowLocalhost:  true,
		RetryMaxElapsed: 5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
		wantURL string
	}{
		{name: "trims trailing slashes", cfg: Config{BaseURL: "https://api.example.com///", APIKey: "k"}, wantURL: "https://api.example.com"},
		{name: "missing base url", cfg: Config{APIKey: "k"}, wantErr: "api.base_url"},
		{name: "missing key", cfg: Config{BaseURL: "https://api.example.com"}, wantErr: "api.key"},
		{name: "not a url", cfg: Config{BaseURL: "api.example.com", APIKey: "k"}, wantErr: "invalid api base URL"},
		{name: "localhost refused", cfg: Config{BaseURL: "http://localhost:3000", APIKey: "k"}, wantErr: "points to localhost (localhost)"},
		{name: "loopback refused", cfg: Config{BaseURL: "http://127.0.0.1:3000", APIKey: "k"}, wantErr: "points to localhost (127.0.0.1)"},
		{name: "localhost allowed", cfg: Config{BaseURL: "http://localhost:3000/", APIKey: "k", AllowLocalhost: true}, wantURL: "http://localhost:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, cfg.BaseURL)
			assert.Equal(t, DefaultTimeout, cfg.Timeout)
		})
	}
}

func TestConfigValidateMissing(t *testing.T) {
	cfg := Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingConfig)
}

func TestGetDefinition(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/platform/v1/workflows/wf-1/definition", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, `{"data":{"id":"wf-1","name":"Support","lock_version":7,"definition":{"nodes":[],"edges":[]}}}`)
	})

	wf, err := c.GetDefinition(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Support", wf.Name)
	assert.Equal(t, flowdef.LockVersion(7), wf.LockVersion)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(wf.Definition))
}

func TestGetDefinitionMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"id":"wf-1","lock_version":1,"definition":null}}`)
	})

	_, err := c.GetDefinition(context.Background(), "wf-1")
	assert.ErrorIs(t, err, flowdef.ErrParse)
}

func TestGetWorkflowWithoutEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/platform/v1/workflows/a%2Fb", r.URL.EscapedPath())
		_, _ = io.WriteString(w, `{"id":"a/b","lock_version":2}`)
	})

	wf, err := c.GetWorkflow(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, flowdef.LockVersion(2), wf.LockVersion)
}

func TestUpdateDefinition(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"workflow":{"definition":{"nodes":[],"edges":[]},"lock_version":4}}`, string(body))
		_, _ = io.WriteString(w, `{"data":{"id":"wf-1","lock_version":5,"updated_at":"2026-01-02T03:04:05Z"}}`)
	})

	wf, err := c.UpdateDefinition(context.Background(), "wf-1", json.RawMessage("{\n  \"nodes\": [],\n  \"edges\": []\n}"), 4)
	require.NoError(t, err)
	assert.Equal(t, flowdef.LockVersion(5), wf.LockVersion)
	assert.Equal(t, "2026-01-02T03:04:05Z", wf.UpdatedAt)
}

func TestUpdateDefinitionKeepsHTMLCharacters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"when":"x < 5 && y > 2"`)
		_, _ = io.WriteString(w, `{"data":{"id":"wf-1","lock_version":2}}`)
	})

	_, err := c.UpdateDefinition(context.Background(), "wf-1", json.RawMessage(`{"when":"x < 5 && y > 2"}`), 1)
	require.NoError(t, err)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantIs      error
	}{
		{"conflict", http.StatusConflict, `{"error":"Conflict: workflow was modified"}`, "Conflict: workflow was modified", flowdef.ErrConflict},
		{"not found", http.StatusNotFound, `{"error":"workflow not found"}`, "workflow not found", ErrNotFound},
		{"plain text body", http.StatusBadRequest, `bad things`, "HTTP 400", nil},
		{"json without error", http.StatusUnauthorized, `{"message":"nope"}`, "HTTP 401", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.UpdateDefinition(context.Background(), "wf-1", json.RawMessage(`{}`), 1)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			} else {
				assert.False(t, errors.Is(err, flowdef.ErrConflict))
			}
		})
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = io.WriteString(w, `{"data":{"id":"wf-1","lock_version":3}}`)
		}
	})

	wf, err := c.GetWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, flowdef.LockVersion(3), wf.LockVersion)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetWorkflow(context.Background(), "wf-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPatchIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.UpdateDefinition(context.Background(), "wf-1", json.RawMessage(`{}`), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, APIKey: "k", AllowLocalhost: true})
	require.NoError(t, err)

	_, err = c.GetWorkflow(context.Background(), "wf-1")
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", AllowLocalhost: true})
	require.NoError(t, err)

	for i := 0; i < breakerThreshold; i++ {
		_, err := c.GetWorkflow(context.Background(), "wf-1")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
	}

	_, err = c.GetWorkflow(context.Background(), "wf-1")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, retryable(err))
	assert.Equal(t, int32(breakerThreshold), calls.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < breakerThreshold+2; i++ {
		_, err := c.GetWorkflow(context.Background(), "wf-1")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(breakerThreshold+2), calls.Load())
}
