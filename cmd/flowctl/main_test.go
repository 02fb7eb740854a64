package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/devserver"
	"github.com/flowctl/flowctl/internal/flowdef"
)

const testGraph = `{"nodes":[{"id":"start","data":{"node_type":"start"}},{"id":"hello","data":{"node_type":"send_text","config":{"message":"Hello"}}}],"edges":[{"source":"start","target":"hello","label":"next"}]}`

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// envelope decodes stdout as a --json envelope.
func (r cliResult) envelope(t *testing.T) (bool, map[string]any, map[string]any) {
	t.Helper()
	var env struct {
		OK    bool           `json:"ok"`
		Data  any            `json:"data"`
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &env), r.stdout)
	data, _ := env.Data.(map[string]any)
	return env.OK, data, env.Error
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(args)
	err := root.Execute()
	cleanup()
	if err != nil {
		reportError(&stdout, &stderr, err)
	}
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// startServer runs a dev server holding one workflow and points the CLI at it.
func startServer(t *testing.T) (*devserver.MemoryStore, string) {
	t.Helper()
	store := devserver.NewMemoryStore()
	wf, err := store.Create(context.Background(), devserver.NewWorkflow{
		Name:       "Support",
		Definition: json.RawMessage(testGraph),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(devserver.NewServer(store, devserver.Options{APIKey: "test-key"}, nil).Handler())
	t.Cleanup(srv.Close)

	t.Setenv("KAPSO_API_BASE_URL", srv.URL)
	t.Setenv("KAPSO_API_KEY", "test-key")
	t.Setenv("KAPSO_API_ALLOW_LOCALHOST", "true")
	t.Setenv("FLOWCTL_API_RETRY_MAX_ELAPSED", "0s")
	return store, wf.ID
}

func storedDefinition(t *testing.T, store *devserver.MemoryStore, id string) (string, flowdef.LockVersion) {
	t.Helper()
	wf, err := store.GetDefinition(context.Background(), id)
	require.NoError(t, err)
	return string(wf.Definition), wf.LockVersion
}

func TestGetGraph(t *testing.T) {
	_, id := startServer(t)

	t.Run("json", func(t *testing.T) {
		res := runCLI(t, "--json", "get-graph", id)
		require.NoError(t, res.err)
		ok, data, _ := res.envelope(t)
		require.True(t, ok)

		wf := data["workflow"].(map[string]any)
		assert.Equal(t, id, wf["id"])
		assert.EqualValues(t, 1, wf["lock_version"])
		assert.NotContains(t, wf, "definition")
		assert.Contains(t, data["workflow_graph_with_lines"], "   1 | {")
		assert.Len(t, data["workflow_graph_sha256"], 64)
	})

	t.Run("human", func(t *testing.T) {
		res := runCLI(t, "get-graph", "--workflow-id", id)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "lock_version  1")
		assert.Contains(t, res.stdout, `"message": "Hello"`)
	})

	t.Run("missing id", func(t *testing.T) {
		res := runCLI(t, "--json", "get-graph")
		require.Error(t, res.err)
		ok, _, errBody := res.envelope(t)
		assert.False(t, ok)
		assert.Equal(t, codeInvalidInput, errBody["code"])
		assert.Equal(t, "workflow_id is required", errBody["message"])
	})

	t.Run("unknown workflow", func(t *testing.T) {
		res := runCLI(t, "--json", "get-graph", "nope")
		require.Error(t, res.err)
		_, _, errBody := res.envelope(t)
		assert.Equal(t, codeAPIError, errBody["code"])
		assert.EqualValues(t, 404, errBody["status"])
	})
}

func TestMissingConfig(t *testing.T) {
	t.Setenv("KAPSO_API_BASE_URL", "")
	t.Setenv("FLOWCTL_API_BASE_URL", "")
	t.Setenv("KAPSO_API_KEY", "")
	t.Setenv("FLOWCTL_API_KEY", "")

	res := runCLI(t, "get-graph", "wf_1")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Error: ")
	assert.Contains(t, res.stderr, "Hint: set KAPSO_API_BASE_URL and KAPSO_API_KEY")
}

func TestEditGraph(t *testing.T) {
	t.Run("submits replacement", func(t *testing.T) {
		store, id := startServer(t)
		res := runCLI(t, "--json", "edit-graph", id, "--expected-lock-version", "1",
			"--old", `"message": "Hello"`, "--new", `"message": "Hello there"`)
		require.NoError(t, res.err, res.stdout)

		ok, data, _ := res.envelope(t)
		require.True(t, ok)
		assert.EqualValues(t, 1, data["replacements_count"])
		assert.EqualValues(t, 0, data["replacements_in_json_strings"])
		assert.Equal(t, "raw", data["matched_variant"])
		assert.NotEqual(t, data["workflow_graph_sha256_before"], data["workflow_graph_sha256_after"])
		assert.EqualValues(t, 2, data["update"].(map[string]any)["lock_version"])

		def, lock := storedDefinition(t, store, id)
		assert.Contains(t, def, "Hello there")
		assert.Equal(t, flowdef.LockVersion(2), lock)
	})

	t.Run("lock-version alias and pasted line numbers", func(t *testing.T) {
		store, id := startServer(t)
		oldFile := filepath.Join(t.TempDir(), "old.txt")
		require.NoError(t, os.WriteFile(oldFile, []byte("```json\n  14 |           \"message\": \"Hello\"\n```\n"), 0600))

		res := runCLI(t, "edit-graph", id, "--lock-version", "1",
			"--old-file", oldFile, "--new", `"message": "Bye"`)
		require.NoError(t, res.err, res.stderr)
		assert.Contains(t, res.stdout, "Updated "+id)

		def, _ := storedDefinition(t, store, id)
		assert.Contains(t, def, `"Bye"`)
	})

	t.Run("dry run", func(t *testing.T) {
		store, id := startServer(t)
		res := runCLI(t, "edit-graph", id, "--expected-lock-version", "1",
			"--old", "Hello", "--new", "Howdy", "--dry-run")
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "Dry run")
		assert.Contains(t, res.stdout, `+          "message": "Howdy"`)

		_, lock := storedDefinition(t, store, id)
		assert.Equal(t, flowdef.LockVersion(1), lock)
	})

	refusals := []struct {
		name     string
		args     []string
		code     string
		contains string
	}{
		{
			name:     "stale lock",
			args:     []string{"--expected-lock-version", "5", "--old", "Hello", "--new", "Hi"},
			code:     codeConflict,
			contains: "expected lock_version 5, current 1",
		},
		{
			name: "ambiguous",
			args: []string{"--expected-lock-version", "1", "--old", `"node_type"`, "--new", `"kind"`},
			code: codeAmbiguousMatch,
		},
		{
			name: "not found",
			args: []string{"--expected-lock-version", "1", "--old", "Goodbye", "--new", "Hi"},
			code: codeNotFound,
		},
		{
			name: "invalid json",
			args: []string{"--expected-lock-version", "1", "--old", `"edges": [`, "--new", `"edges": `},
			code: codeParseError,
		},
		{
			name:     "structural violation",
			args:     []string{"--expected-lock-version", "1", "--old", `"label": "next"`, "--new", `"label": "go"`},
			code:     codeStructuralViolation,
			contains: "invalid workflow graph",
		},
		{
			name: "missing lock",
			args: []string{"--old", "Hello", "--new", "Hi"},
			code: codeInvalidInput,
		},
		{
			name: "missing new text",
			args: []string{"--expected-lock-version", "1", "--old", "Hello"},
			code: codeInvalidInput,
		},
	}
	for _, tt := range refusals {
		t.Run(tt.name, func(t *testing.T) {
			store, id := startServer(t)
			before, _ := storedDefinition(t, store, id)

			res := runCLI(t, append([]string{"--json", "edit-graph", id}, tt.args...)...)
			require.Error(t, res.err)
			ok, _, errBody := res.envelope(t)
			assert.False(t, ok)
			assert.Equal(t, tt.code, errBody["code"])
			if tt.contains != "" {
				assert.Contains(t, errBody["message"], tt.contains)
			}

			after, lock := storedDefinition(t, store, id)
			assert.Equal(t, before, after)
			assert.Equal(t, flowdef.LockVersion(1), lock)
		})
	}

	t.Run("conflict details", func(t *testing.T) {
		_, id := startServer(t)
		res := runCLI(t, "--json", "edit-graph", id, "--expected-lock-version", "3", "--old", "Hello", "--new", "Hi")
		_, _, errBody := res.envelope(t)
		details := errBody["details"].(map[string]any)
		assert.EqualValues(t, 3, details["expected_lock_version"])
		assert.EqualValues(t, 1, details["current_lock_version"])
	})

	t.Run("violation listed on stderr", func(t *testing.T) {
		_, id := startServer(t)
		res := runCLI(t, "edit-graph", id, "--expected-lock-version", "1",
			"--old", `"label": "next"`, "--new", `"label": "go"`)
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, `  - node start outgoing edge label must be "next"`)
		assert.Contains(t, res.stderr, "--skip-validation")
	})

	t.Run("skip validation", func(t *testing.T) {
		store, id := startServer(t)
		res := runCLI(t, "--json", "edit-graph", id, "--expected-lock-version", "1",
			"--old", `"label": "next"`, "--new", `"label": "go"`, "--skip-validation")
		require.NoError(t, res.err, res.stdout)
		_, data, _ := res.envelope(t)
		assert.Equal(t, false, data["validation"].(map[string]any)["valid"])

		_, lock := storedDefinition(t, store, id)
		assert.Equal(t, flowdef.LockVersion(2), lock)
	})

	t.Run("confirm needs a terminal", func(t *testing.T) {
		_, id := startServer(t)
		res := runCLI(t, "--json", "edit-graph", id, "--expected-lock-version", "1",
			"--old", "Hello", "--new", "Hi", "--confirm")
		require.Error(t, res.err)
		_, _, errBody := res.envelope(t)
		assert.Equal(t, "--confirm requires an interactive terminal", errBody["message"])
	})
}

func TestUpdateGraph(t *testing.T) {
	yamlDef := `
nodes:
  - id: start
    data:
      node_type: start
  - id: bye
    data:
      node_type: send_text
      config:
        message: Bye
edges:
  - source: start
    target: bye
    label: next
`

	t.Run("yaml file", func(t *testing.T) {
		store, id := startServer(t)
		path := filepath.Join(t.TempDir(), "graph.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlDef), 0600))

		res := runCLI(t, "--json", "update-graph", id, "--expected-lock-version", "1", "--definition-file", path)
		require.NoError(t, res.err, res.stdout)
		_, data, _ := res.envelope(t)
		assert.EqualValues(t, 2, data["workflow"].(map[string]any)["lock_version"])

		def, _ := storedDefinition(t, store, id)
		assert.Contains(t, def, `"Bye"`)
	})

	t.Run("envelope input", func(t *testing.T) {
		_, id := startServer(t)
		input := `{"ok":true,"data":{"definition":` + testGraph + `}}`
		res := runCLI(t, "--json", "update-graph", id, "--expected-lock-version", "1", "--definition-json", input, "--dry-run")
		require.NoError(t, res.err, res.stdout)
		_, data, _ := res.envelope(t)
		assert.Equal(t, true, data["dry_run"])
		assert.Equal(t, true, data["validation"].(map[string]any)["valid"])
	})

	t.Run("stale lock", func(t *testing.T) {
		store, id := startServer(t)
		res := runCLI(t, "--json", "update-graph", id, "--expected-lock-version", "2", "--definition-json", testGraph)
		require.Error(t, res.err)
		_, _, errBody := res.envelope(t)
		assert.Equal(t, codeConflict, errBody["code"])

		_, lock := storedDefinition(t, store, id)
		assert.Equal(t, flowdef.LockVersion(1), lock)
	})

	t.Run("unparseable", func(t *testing.T) {
		_, id := startServer(t)
		res := runCLI(t, "--json", "update-graph", id, "--expected-lock-version", "1", "--definition-json", `{"foo":1}`)
		require.Error(t, res.err)
		_, _, errBody := res.envelope(t)
		assert.Equal(t, codeParseError, errBody["code"])
	})

	t.Run("missing definition", func(t *testing.T) {
		_, id := startServer(t)
		res := runCLI(t, "--json", "update-graph", id, "--expected-lock-version", "1")
		require.Error(t, res.err)
		_, _, errBody := res.envelope(t)
		assert.Equal(t, "definition-file or definition-json is required", errBody["message"])
	})
}

func TestValidateGraph(t *testing.T) {
	noStart := `{"nodes":[{"id":"a","data":{"node_type":"send_text"}}],"edges":[]}`

	t.Run("definition json", func(t *testing.T) {
		res := runCLI(t, "--json", "validate-graph", "--definition-json", noStart)
		require.NoError(t, res.err)
		ok, data, _ := res.envelope(t)
		require.True(t, ok)
		assert.Equal(t, "definition-input", data["source"])
		assert.Equal(t, false, data["valid"])
		assert.Equal(t, []any{`graph must contain exactly one start node with id "start"`}, data["errors"])
		assert.EqualValues(t, 1, data["stats"].(map[string]any)["nodes"])
	})

	t.Run("strict exits non-zero after printing", func(t *testing.T) {
		res := runCLI(t, "--json", "validate-graph", "--definition-json", noStart, "--strict")
		require.ErrorIs(t, res.err, errFailed)
		ok, data, _ := res.envelope(t)
		assert.True(t, ok)
		assert.Equal(t, false, data["valid"])
	})

	t.Run("definition file source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graph.json")
		require.NoError(t, os.WriteFile(path, []byte(testGraph), 0600))

		res := runCLI(t, "validate-graph", "--definition-file", path, "--strict")
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "valid")
		assert.Contains(t, res.stdout, path)
	})

	t.Run("several workflows", func(t *testing.T) {
		store, id := startServer(t)
		other, err := store.Create(context.Background(), devserver.NewWorkflow{Name: "Empty"})
		require.NoError(t, err)

		res := runCLI(t, "--json", "validate-graph", "--workflow-id", id, "--workflow-id", other.ID)
		require.NoError(t, res.err, res.stdout)
		var env struct {
			Data []map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &env))
		require.Len(t, env.Data, 2)
		assert.Equal(t, "workflow:"+id, env.Data[0]["source"])
		assert.Equal(t, "workflow:"+other.ID, env.Data[1]["source"])
	})

	t.Run("input required", func(t *testing.T) {
		res := runCLI(t, "--json", "validate-graph")
		require.Error(t, res.err)
		_, _, errBody := res.envelope(t)
		assert.Equal(t, codeInvalidInput, errBody["code"])
	})

	t.Run("watch requires a file", func(t *testing.T) {
		res := runCLI(t, "--json", "validate-graph", "--definition-json", testGraph, "--watch")
		require.Error(t, res.err)
		_, _, errBody := res.envelope(t)
		assert.Equal(t, "--watch requires --definition-file", errBody["message"])
	})
}

func TestWatchDefinition(t *testing.T) {
	oldDebounce := watchDebounce
	watchDebounce = 20 * time.Millisecond
	t.Cleanup(func() { watchDebounce = oldDebounce })

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(testGraph), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runs := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- watchDefinition(ctx, path, func() { runs <- struct{}{} })
	}()

	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("initial run did not happen")
	}

	require.NoError(t, os.WriteFile(path, []byte(testGraph+"\n"), 0600))
	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("change was not picked up")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchDefinitionMissingFile(t *testing.T) {
	err := watchDefinition(context.Background(), filepath.Join(t.TempDir(), "missing.json"), func() {})
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KAPSO_API_KEY", "sk-abcdef123456")

	res := runCLI(t, "--json", "config", "show")
	require.NoError(t, res.err)
	var env struct {
		Data configShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &env))
	found := false
	for _, e := range env.Data.Settings {
		if e.Key == "api.key" {
			found = true
			assert.Equal(t, "****3456", e.Value)
			assert.Equal(t, "env", e.Source)
		}
	}
	assert.True(t, found)

	res = runCLI(t, "config", "set", "api.timeout", "45s")
	require.NoError(t, res.err, res.stderr)
	content, err := os.ReadFile(filepath.Join(".flowctl", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "api.timeout: 45s\n", string(content))

	res = runCLI(t, "--json", "config", "set", "api.bogus", "1")
	require.Error(t, res.err)
	_, _, errBody := res.envelope(t)
	assert.Equal(t, codeInvalidInput, errBody["code"])

	res = runCLI(t, "config", "get", "validate.concurrency")
	require.NoError(t, res.err)
	assert.Equal(t, "4\n", res.stdout)
}

func TestVersion(t *testing.T) {
	res := runCLI(t, "--json", "version")
	require.NoError(t, res.err)
	ok, data, _ := res.envelope(t)
	assert.True(t, ok)
	assert.Equal(t, Version, data["version"])
}
