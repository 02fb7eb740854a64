// Package graphsync implements the optimistic-lock workflow for changing a
// stored workflow graph: fetch the definition and its lock version, edit it
// locally, validate the candidate, and submit it against the lock that was
// read. A lock mismatch is reported as a conflict and never retried or
// merged; the caller refetches and starts over.
package graphsync

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/graphcheck"
)

// ErrAborted is returned when a Confirm callback declines the change.
var ErrAborted = errors.New("aborted")

// Store is the remote workflow store. *platform.Client implements it.
type Store interface {
	// GetDefinition returns the workflow with its Definition populated.
	GetDefinition(ctx context.Context, id string) (*flowdef.Workflow, error)
	// GetWorkflow returns workflow metadata; Definition may be empty.
	GetWorkflow(ctx context.Context, id string) (*flowdef.Workflow, error)
	// UpdateDefinition replaces the definition when expected is still the
	// current lock version and returns the updated workflow.
	UpdateDefinition(ctx context.Context, id string, def json.RawMessage, expected flowdef.LockVersion) (*flowdef.Workflow, error)
}

// Snapshot is a fetched definition in the forms an editor needs: the exact
// pretty text edits are applied to, a line-numbered view of it, and its hash.
type Snapshot struct {
	Workflow   *flowdef.Workflow `json:"workflow"`
	Definition json.RawMessage   `json:"definition"`
	Pretty     string            `json:"workflow_graph_pretty"`
	WithLines  string            `json:"workflow_graph_with_lines"`
	SHA256     string            `json:"workflow_graph_sha256"`
}

// Get fetches a workflow definition and renders it.
func Get(ctx context.Context, store Store, id string) (*Snapshot, error) {
	wf, err := store.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(wf)
}

// NewSnapshot renders the definition carried by wf.
func NewSnapshot(wf *flowdef.Workflow) (*Snapshot, error) {
	pretty, err := flowdef.Pretty(wf.Definition)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Workflow:   wf.Summary(),
		Definition: wf.Definition,
		Pretty:     pretty,
		WithLines:  flowdef.WithLineNumbers(pretty),
		SHA256:     flowdef.SHA256(pretty),
	}, nil
}

// Validation is the outcome of validating one definition.
type Validation struct {
	Source   string           `json:"source"`
	Valid    bool             `json:"valid"`
	Errors   []string         `json:"errors"`
	Warnings []string         `json:"warnings"`
	Stats    graphcheck.Stats `json:"stats"`
}

// Report returns the validation findings as a graphcheck report.
func (v *Validation) Report() *graphcheck.Report {
	return &graphcheck.Report{Errors: v.Errors, Warnings: v.Warnings, Stats: v.Stats}
}

// Check validates raw, and lints it against schema when one is given.
func Check(source string, raw json.RawMessage, schema *graphcheck.SchemaLinter) (*Validation, error) {
	def, err := flowdef.DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	return check(source, def, schema), nil
}

func check(source string, def map[string]any, schema *graphcheck.SchemaLinter) *Validation {
	r := graphcheck.Validate(def)
	if schema != nil {
		schema.Apply(r, def)
	}
	return &Validation{
		Source:   source,
		Valid:    r.Valid(),
		Errors:   r.Errors,
		Warnings: r.Warnings,
		Stats:    r.Stats,
	}
}
