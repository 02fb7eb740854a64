package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/graphsync"
	"github.com/flowctl/flowctl/internal/ui"
)

func newGetGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get-graph [workflow-id]",
		Short: "Fetch a workflow graph with line numbers and its lock_version",
		Long: `Fetch a workflow definition and print it pretty-printed with line numbers,
together with its lock_version and sha256. Pass the lock_version to edit-graph
or update-graph as --expected-lock-version.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGetGraph,
	}
	cmd.Flags().String("workflow-id", "", "Workflow id (alternative to the positional argument)")
	cmd.Flags().Int("max-lines", 0, "Truncate the printed graph to this many lines (0 prints everything)")
	return cmd
}

func runGetGraph(cmd *cobra.Command, args []string) error {
	id, err := workflowIDArg(cmd, args)
	if err != nil {
		return err
	}
	store, err := newStore()
	if err != nil {
		return err
	}

	snap, err := graphsync.Get(commandContext(cmd), store, id)
	if err != nil {
		return err
	}

	maxLines, _ := cmd.Flags().GetInt("max-lines")
	return writeResult(cmd, snap, func(w io.Writer) {
		wf := snap.Workflow
		fmt.Fprintln(w, ui.RenderCategory("workflow"))
		fmt.Fprintln(w, ui.RenderField("id", wf.ID))
		if wf.Name != "" {
			fmt.Fprintln(w, ui.RenderField("name", wf.Name))
		}
		if wf.Description != "" {
			fmt.Fprintln(w, ui.RenderField("description", ui.TruncateSimple(wf.Description, 80)))
		}
		if wf.Status != "" {
			fmt.Fprintln(w, ui.RenderField("status", wf.Status))
		}
		fmt.Fprintln(w, ui.RenderField("lock_version", ui.RenderAccent(fmt.Sprint(wf.LockVersion))))
		if wf.UpdatedAt != "" {
			fmt.Fprintln(w, ui.RenderField("updated_at", wf.UpdatedAt))
		}
		fmt.Fprintln(w, ui.RenderField("sha256", snap.SHA256))
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.RenderCategory("graph"))
		fmt.Fprintln(w, ui.TruncateLines(snap.WithLines, maxLines, 10))
	})
}
