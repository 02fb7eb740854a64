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

func newEditGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit-graph [workflow-id]",
		Short: "Replace text in a workflow graph and submit it under its lock_version",
		Long: `Replace an exact text fragment of the pretty-printed graph (as printed by
get-graph) and submit the result. Line-number prefixes and code fences pasted
from get-graph output are stripped from --old and --new.

The edit is refused without submitting anything when the lock_version no
longer matches, the old text is missing or ambiguous, the result is not
valid JSON, or the result fails graph validation.`,
		Example: `  flowctl get-graph wf_123
  flowctl edit-graph wf_123 --expected-lock-version 7 \
    --old '"message": "Hi"' --new '"message": "Hello"'`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEditGraph,
	}
	cmd.Flags().String("workflow-id", "", "Workflow id (alternative to the positional argument)")
	addLockFlags(cmd)
	cmd.Flags().String("old", "", "Text to replace")
	cmd.Flags().String("old-file", "", "Read the text to replace from a file (- for stdin)")
	cmd.Flags().String("new", "", "Replacement text")
	cmd.Flags().String("new-file", "", "Read the replacement text from a file (- for stdin)")
	cmd.Flags().Bool("replace-all", false, "Replace every occurrence instead of requiring a unique match")
	cmd.Flags().Bool("dry-run", false, "Show the result without submitting it")
	cmd.Flags().Bool("skip-validation", false, "Submit even if graph validation reports errors")
	cmd.Flags().Bool("confirm", false, "Show the diff and ask before submitting")
	return cmd
}

func runEditGraph(cmd *cobra.Command, args []string) error {
	id, err := workflowIDArg(cmd, args)
	if err != nil {
		return err
	}
	lock, err := expectedLock(cmd)
	if err != nil {
		return err
	}
	oldText, err := textInput(cmd, "old", "old-file")
	if err != nil {
		return err
	}
	newText, err := textInput(cmd, "new", "new-file")
	if err != nil {
		return err
	}
	if oldText == "" || newText == "" {
		return newUsageError("old/new text is required (use --old/--new or --old-file/--new-file)")
	}

	req := graphsync.EditRequest{
		WorkflowID:     id,
		ExpectedLock:   lock,
		OldText:        oldText,
		NewText:        newText,
		SkipValidation: config.GetBool(config.KeyEditSkipValidation),
	}
	req.ReplaceAll, _ = cmd.Flags().GetBool("replace-all")
	req.DryRun, _ = cmd.Flags().GetBool("dry-run")
	if cmd.Flags().Changed("skip-validation") {
		req.SkipValidation, _ = cmd.Flags().GetBool("skip-validation")
	}
	if confirm, _ := cmd.Flags().GetBool("confirm"); confirm {
		if !interactive() {
			return newUsageError("--confirm requires an interactive terminal")
		}
		req.Confirm = func(r *graphsync.EditResult) (bool, error) {
			title := fmt.Sprintf("Submit %d replacement(s) to %s?", r.Replacements, r.WorkflowID)
			return confirmSubmit(title, unifiedDiff(r.Before, r.After))
		}
	}
	if req.Schema, err = loadSchema(); err != nil {
		return err
	}

	store, err := newStore()
	if err != nil {
		return err
	}
	result, err := graphsync.Edit(commandContext(cmd), store, req)
	if err != nil {
		return err
	}

	if !result.DryRun {
		debug.LogEvent("edit-graph", id, fmt.Sprintf("lock_version %d -> %d, %d replacement(s), sha256 %s",
			lock, result.Update.LockVersion, result.Replacements, result.SHA256After))
	}

	return writeResult(cmd, result, func(w io.Writer) {
		if result.DryRun {
			fmt.Fprintf(w, "%s Dry run: %s not updated\n", ui.RenderInfoIcon(), id)
			fmt.Fprintln(w, unifiedDiff(result.Before, result.After))
		} else {
			fmt.Fprintf(w, "%s Updated %s (lock_version %s)\n", ui.RenderPassIcon(), id,
				ui.RenderAccent(fmt.Sprint(result.Update.LockVersion)))
		}
		fmt.Fprintln(w, ui.RenderField("replacements", fmt.Sprintf("%d (%d in strings, %d outside)",
			result.Replacements, result.ReplacementsInJSONStrings, result.ReplacementsOutsideJSONStrings)))
		fmt.Fprintln(w, ui.RenderField("variant", result.MatchedVariant))
		fmt.Fprintln(w, ui.RenderField("sha256 before", result.SHA256Before))
		fmt.Fprintln(w, ui.RenderField("sha256 after", result.SHA256After))
		fmt.Fprint(w, ui.RenderFindings(result.Validation.Errors, result.Validation.Warnings))
	})
}
