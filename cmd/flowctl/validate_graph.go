package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/config"
	"github.com/flowctl/flowctl/internal/debug"
	"github.com/flowctl/flowctl/internal/graphcheck"
	"github.com/flowctl/flowctl/internal/graphsync"
)

// watchDebounce is how long --watch waits after the last change.
var watchDebounce = 300 * time.Millisecond

func newValidateGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-graph",
		Short: "Check a workflow graph against the graph rules",
		Long: `Validate a stored workflow (--workflow-id, repeatable) or a local definition
(--definition-file / --definition-json). An invalid graph is reported in the
output; pass --strict to also exit non-zero.

With --watch, the definition file is re-validated every time it changes.`,
		Args: cobra.NoArgs,
		RunE: runValidateGraph,
	}
	cmd.Flags().StringSlice("workflow-id", nil, "Stored workflow to validate (repeatable)")
	cmd.Flags().String("definition-file", "", "Definition file (JSON or YAML, - for stdin)")
	cmd.Flags().String("definition-json", "", "Definition as a JSON string")
	cmd.Flags().Bool("watch", false, "Re-validate --definition-file whenever it changes")
	cmd.Flags().Bool("strict", false, "Exit 1 when any graph is invalid")
	return cmd
}

func runValidateGraph(cmd *cobra.Command, _ []string) error {
	ids, _ := cmd.Flags().GetStringSlice("workflow-id")
	file, _ := cmd.Flags().GetString("definition-file")
	inline, _ := cmd.Flags().GetString("definition-json")
	watch, _ := cmd.Flags().GetBool("watch")
	strict, _ := cmd.Flags().GetBool("strict")

	if len(ids) == 0 && file == "" && inline == "" {
		return newUsageError("provide --workflow-id, --definition-file, or --definition-json")
	}
	if len(ids) > 0 && (file != "" || inline != "") {
		return newUsageError("--workflow-id cannot be combined with a definition input")
	}
	if watch && (file == "" || file == "-") {
		return newUsageError("--watch requires --definition-file")
	}

	schema, err := loadSchema()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	if len(ids) > 0 {
		store, err := newStore()
		if err != nil {
			return err
		}
		results, err := graphsync.ValidateWorkflows(ctx, store, ids, config.GetInt(config.KeyValidateConcurrency), schema)
		if err != nil {
			return err
		}
		var data any = results
		if len(results) == 1 {
			data = results[0]
		}
		if err := writeValidations(cmd, data, results); err != nil {
			return err
		}
		return strictResult(strict, results...)
	}

	if watch {
		return watchDefinition(ctx, file, func() {
			if v, err := validateInput(cmd, schema); err != nil {
				reportError(cmd.OutOrStdout(), cmd.ErrOrStderr(), err)
			} else {
				_ = writeValidations(cmd, v, []*graphsync.Validation{v})
			}
			if !debug.IsQuiet() {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching %s for changes... (Press Ctrl+C to exit)\n", file)
			}
		})
	}

	v, err := validateInput(cmd, schema)
	if err != nil {
		return err
	}
	if err := writeValidations(cmd, v, []*graphsync.Validation{v}); err != nil {
		return err
	}
	return strictResult(strict, v)
}

func validateInput(cmd *cobra.Command, schema *graphcheck.SchemaLinter) (*graphsync.Validation, error) {
	def, source, err := definitionInput(cmd)
	if err != nil {
		return nil, err
	}
	return graphsync.Check(source, def, schema)
}

func writeValidations(cmd *cobra.Command, data any, results []*graphsync.Validation) error {
	return writeResult(cmd, data, func(w io.Writer) {
		for i, v := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			printValidation(w, v)
		}
	})
}

func strictResult(strict bool, results ...*graphsync.Validation) error {
	if !strict {
		return nil
	}
	for _, v := range results {
		if !v.Valid {
			return errFailed
		}
	}
	return nil
}

// watchDefinition calls run once, then again after each burst of changes to
// path, until ctx is done. The parent directory is watched so editors that
// replace the file on save are seen.
func watchDefinition(ctx context.Context, path string, run func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		mu       sync.Mutex
		debounce *time.Timer
	)
	serialized := func() {
		mu.Lock()
		defer mu.Unlock()
		run()
	}
	trigger := func() {
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(watchDebounce, serialized)
	}
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	serialized()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debug.Logf("watch: %s\n", event)
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				trigger()
				continue
			}
			WarnError("watcher error: %v", err)
		}
	}
}
