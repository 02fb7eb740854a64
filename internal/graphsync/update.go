package graphsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/graphcheck"
	"github.com/flowctl/flowctl/internal/graphedit"
)

// UpdateRequest replaces a stored workflow graph wholesale.
type UpdateRequest struct {
	WorkflowID     string
	ExpectedLock   flowdef.LockVersion
	Definition     []byte // already extracted from any envelope
	DryRun         bool
	SkipValidation bool
	Schema         *graphcheck.SchemaLinter
	Confirm        func(*UpdateResult) (bool, error)
}

// UpdateResult describes a submitted (or, for dry runs, pending) update.
type UpdateResult struct {
	WorkflowID string            `json:"workflow_id"`
	Workflow   *flowdef.Workflow `json:"workflow,omitempty"`
	SHA256     string            `json:"workflow_graph_sha256"`
	Validation *Validation       `json:"validation"`
	DryRun     bool              `json:"dry_run,omitempty"`

	Pretty string `json:"-"`
}

// Update validates the supplied definition, checks the lock against the
// workflow's current metadata and submits it.
func Update(ctx context.Context, store Store, req UpdateRequest) (*UpdateResult, error) {
	if strings.TrimSpace(req.WorkflowID) == "" {
		return nil, &graphedit.EditError{Kind: graphedit.ErrInvalidInput, Msg: "workflow id is required"}
	}

	def, err := flowdef.DecodeObject(req.Definition)
	if err != nil {
		return nil, err
	}
	pretty, err := flowdef.Pretty(req.Definition)
	if err != nil {
		return nil, err
	}

	current, err := store.GetWorkflow(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("fetch workflow metadata for lock check: %w", err)
	}
	if err := flowdef.CheckLock(req.ExpectedLock, current.LockVersion); err != nil {
		return nil, err
	}

	result := &UpdateResult{
		WorkflowID: req.WorkflowID,
		SHA256:     flowdef.SHA256(pretty),
		Validation: check(fmt.Sprintf("workflow:%s", req.WorkflowID), def, req.Schema),
		DryRun:     req.DryRun,
		Pretty:     pretty,
	}
	if !result.Validation.Valid && !req.SkipValidation {
		return nil, result.Validation.Report().Err()
	}
	if req.DryRun {
		result.Workflow = current.Summary()
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

	updated, err := store.UpdateDefinition(ctx, req.WorkflowID, req.Definition, current.LockVersion)
	if err != nil {
		return nil, err
	}
	result.Workflow = updated.Summary()
	return result, nil
}
