package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/config"
	"github.com/flowctl/flowctl/internal/debug"
	"github.com/flowctl/flowctl/internal/graphsync"
	"github.com/flowctl/flowctl/internal/ui"
)

func newUpdateGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-graph [workflow-id]",
		Short: "Replace a workflow graph wholesale under its lock_version",
		Long: `Replace the whole workflow definition. The input may be a bare
{nodes, edges} document or any envelope get-graph and the platform API
produce; files ending in .yaml or .yml are read as YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runUpdateGraph,
	}
	cmd.Flags().String("workflow-id", "", "Workflow id (alternative to the positional argument)")
	addLockFlags(cmd)
	cmd.Flags().String("definition-file", "", "Definition file (JSON or YAML, - for stdin)")
	cmd.Flags().String("definition-json", "", "Definition as a JSON string")
	cmd.Flags().Bool("dry-run", false, "Validate and check the lock without submitting")
	cmd.Flags().Bool("skip-validation", false, "Submit even if graph validation reports errors")
	cmd.Flags().Bool("confirm", false, "Ask before submitting")
	return cmd
}

func runUpdateGraph(cmd *cobra.Command, args []string) error {
	id, err := workflowIDArg(cmd, args)
	if err != nil {
		return err
	}
	lock, err := expectedLock(cmd)
	if err != nil {
		return err
	}
	def, _, err := definitionInput(cmd)
	if err != nil {
		return err
	}

	req := graphsync.UpdateRequest{
		WorkflowID:     id,
		ExpectedLock:   lock,
		Definition:     def,
		SkipValidation: config.GetBool(config.KeyEditSkipValidation),
	}
	req.DryRun, _ = cmd.Flags().GetBool("dry-run")
	if cmd.Flags().Changed("skip-validation") {
		req.SkipValidation, _ = cmd.Flags().GetBool("skip-validation")
	}
	if confirm, _ := cmd.Flags().GetBool("confirm"); confirm {
		if !interactive() {
			return newUsageError("--confirm requires an interactive terminal")
		}
		req.Confirm = func(r *graphsync.UpdateResult) (bool, error) {
			return confirmSubmit(fmt.Sprintf("Replace the graph of %s (%d nodes, %d edges)?",
				r.WorkflowID, r.Validation.Stats.Nodes, r.Validation.Stats.Edges), "")
		}
	}
	if req.Schema, err = loadSchema(); err != nil {
		return err
	}

	store, err := newStore()
	if err != nil {
		return err
	}
	result, err := graphsync.Update(commandContext(cmd), store, req)
	if err != nil {
		return err
	}

	if !result.DryRun {
		debug.LogEvent("update-graph", id, fmt.Sprintf("lock_version %d -> %d, sha256 %s",
			lock, result.Workflow.LockVersion, result.SHA256))
	}

	return writeResult(cmd, result, func(w io.Writer) {
		if result.DryRun {
			fmt.Fprintf(w, "%s Dry run: %s not updated (lock_version %d matches)\n",
				ui.RenderInfoIcon(), id, result.Workflow.LockVersion)
		} else {
			fmt.Fprintf(w, "%s Updated %s (lock_version %s)\n", ui.RenderPassIcon(), id,
				ui.RenderAccent(fmt.Sprint(result.Workflow.LockVersion)))
		}
		fmt.Fprintln(w, ui.RenderField("sha256", result.SHA256))
		fmt.Fprint(w, ui.RenderFindings(result.Validation.Errors, result.Validation.Warnings))
	})
}
