package devserver

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerMetrics(t *testing.T) {
	store := NewMemoryStore()
	server := NewServer(store, Options{StrictGraphs: true}, nil)
	wf, err := store.Create(context.Background(), NewWorkflow{Name: "Support"})
	require.NoError(t, err)

	srv := newHTTPServer(t, server)
	url := srv.URL + "/platform/v1/workflows/" + wf.ID

	status, _ := do(t, http.MethodPatch, url, "", `{"workflow":{"definition":`+testGraph+`,"lock_version":1}}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = do(t, http.MethodPatch, url, "", `{"workflow":{"definition":`+testGraph+`,"lock_version":1}}`)
	require.Equal(t, http.StatusConflict, status)
	status, _ = do(t, http.MethodPatch, url, "", `{"workflow":{"definition":{"nodes":[],"edges":[]},"lock_version":2}}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	m := server.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DefinitionsUpdated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GraphRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("PATCH", "/platform/v1/workflows/{id}", "409")))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "flowctl_devserver_lock_conflicts_total 1")
}

func TestServerCORS(t *testing.T) {
	preflight := func(t *testing.T, opts Options) *http.Response {
		t.Helper()
		_, srv := newTestServer(t, opts)
		req, err := http.NewRequest(http.MethodOptions, srv.URL+"/platform/v1/workflows/wf-1", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := preflight(t, Options{CORSOrigins: []string{"http://localhost:3000"}, APIKey: "secret"})
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = preflight(t, Options{})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
