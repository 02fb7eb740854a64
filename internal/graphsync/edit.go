package graphsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowctl/flowctl/internal/debug"
	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/graphcheck"
	"github.com/flowctl/flowctl/internal/graphedit"
)

// EditRequest describes a text replacement on a stored workflow graph.
type EditRequest struct {
	WorkflowID   string
	ExpectedLock flowdef.LockVersion
	OldText      string // normalized before use
	NewText      string // normalized before use
	ReplaceAll   bool

	// DryRun stops after validation; nothing is submitted.
	DryRun bool
	// SkipValidation submits a candidate even when the validator reports
	// errors. The report is still attached to the result.
	SkipValidation bool
	Schema         *graphcheck.SchemaLinter

	// Confirm, when set, is called with the pending result just before
	// submission. Returning false aborts with ErrAborted.
	Confirm func(*EditResult) (bool, error)
}

// EditResult describes an applied (or, for dry runs, pending) edit.
type EditResult struct {
	WorkflowID string `json:"workflow_id"`
	graphedit.Result
	SHA256Before string            `json:"workflow_graph_sha256_before"`
	SHA256After  string            `json:"workflow_graph_sha256_after"`
	Validation   *Validation       `json:"validation"`
	DryRun       bool              `json:"dry_run,omitempty"`
	Update       *flowdef.Workflow `json:"update,omitempty"`

	// Before and After are the pretty-printed graph texts.
	Before string `json:"-"`
	After  string `json:"-"`
}

// Edit fetches the workflow, applies the replacement to its pretty-printed
// definition, validates the result and submits it under the fetched lock.
//
// Nothing is submitted when the lock does not match, the replacement is
// refused, the result is not valid JSON, or validation fails.
func Edit(ctx context.Context, store Store, req EditRequest) (*EditResult, error) {
	if strings.TrimSpace(req.WorkflowID) == "" {
		return nil, &graphedit.EditError{Kind: graphedit.ErrInvalidInput, Msg: "workflow id is required"}
	}

	wf, err := store.GetDefinition(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}
	if err := flowdef.CheckLock(req.ExpectedLock, wf.LockVersion); err != nil {
		return nil, err
	}

	before, err := flowdef.Pretty(wf.Definition)
	if err != nil {
		return nil, err
	}

	edit, err := graphedit.Apply(before,
		graphedit.NormalizeEditText(req.OldText),
		graphedit.NormalizeEditText(req.NewText),
		req.ReplaceAll)
	if err != nil {
		return nil, err
	}
	debug.Logf("edit %s: %d replacement(s) using %s variant\n", req.WorkflowID, edit.Replacements, edit.MatchedVariant)

	candidate, err := flowdef.DecodeObject([]byte(edit.Content))
	if err != nil {
		return nil, &flowdef.ParseError{Source: "replacement", Msg: "invalid JSON after replacement", Err: parseCause(err)}
	}

	result := &EditResult{
		WorkflowID:   req.WorkflowID,
		Result:       *edit,
		SHA256Before: flowdef.SHA256(before),
		SHA256After:  flowdef.SHA256(edit.Content),
		Validation:   check(fmt.Sprintf("workflow:%s", req.WorkflowID), candidate, req.Schema),
		DryRun:       req.DryRun,
		Before:       before,
		After:        edit.Content,
	}
	if !result.Validation.Valid && !req.SkipValidation {
		return nil, result.Validation.Report().Err()
	}

	if req.DryRun {
		return result, nil
	}
	if req.Confirm != nil {
		ok, err := req.Confirm(result)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAborted
		}
	}

	updated, err := store.UpdateDefinition(ctx, req.WorkflowID, json.RawMessage(edit.Content), wf.LockVersion)
	if err != nil {
		return nil, err
	}
	result.Update = updated.Summary()
	return result, nil
}

// parseCause returns the decoder error inside a *flowdef.ParseError.
func parseCause(err error) error {
	if pe, ok := err.(*flowdef.ParseError); ok && pe.Err != nil {
		return pe.Err
	}
	return err
}
