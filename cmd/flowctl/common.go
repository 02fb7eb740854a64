package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/flowctl/flowctl/internal/config"
	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/graphcheck"
	"github.com/flowctl/flowctl/internal/graphsync"
	"github.com/flowctl/flowctl/internal/platform"
	"github.com/flowctl/flowctl/internal/telemetry"
	"github.com/flowctl/flowctl/internal/ui"
)

// newStore builds the platform client from configuration.
// Overridden in tests.
var newStore = func() (graphsync.Store, error) {
	client, err := platform.NewClient(platform.Config{
		BaseURL:         config.GetString(config.KeyAPIBaseURL),
		APIKey:          config.GetString(config.KeyAPIKey),
		AllowLocalhost:  config.GetBool(config.KeyAPIAllowLocalhost),
		Timeout:         config.GetDuration(config.KeyAPITimeout),
		RetryMaxElapsed: config.GetDuration(config.KeyAPIRetryMaxElapsed),
	})
	if err != nil {
		return nil, err
	}
	return telemetry.WrapStore(client), nil
}

// loadSchema compiles the configured validate.schema, if any.
func loadSchema() (*graphcheck.SchemaLinter, error) {
	path := config.GetString(config.KeyValidateSchema)
	if path == "" {
		return nil, nil
	}
	return graphcheck.LoadSchema(path)
}

// workflowIDArg takes the workflow id from the first argument or --workflow-id.
func workflowIDArg(cmd *cobra.Command, args []string) (string, error) {
	id := ""
	if len(args) > 0 {
		id = args[0]
	} else {
		id, _ = cmd.Flags().GetString("workflow-id")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", newUsageError("workflow_id is required")
	}
	return id, nil
}

func addLockFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("expected-lock-version", 0, "lock_version returned by get-graph (required)")
	cmd.Flags().Int64("lock-version", 0, "Alias for --expected-lock-version")
	_ = cmd.Flags().MarkHidden("lock-version")
}

func expectedLock(cmd *cobra.Command) (flowdef.LockVersion, error) {
	for _, name := range []string{"expected-lock-version", "lock-version"} {
		if cmd.Flags().Changed(name) {
			v, err := cmd.Flags().GetInt64(name)
			if err != nil {
				return 0, err
			}
			return flowdef.LockVersion(v), nil
		}
	}
	return 0, newUsageError("expected-lock-version is required")
}

// textInput returns the contents of fileFlag when set ("-" reads stdin),
// else the value of valueFlag.
func textInput(cmd *cobra.Command, valueFlag, fileFlag string) (string, error) {
	if path, _ := cmd.Flags().GetString(fileFlag); path != "" {
		data, err := readInput(cmd, path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	value, _ := cmd.Flags().GetString(valueFlag)
	return value, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path) // #nosec G304 - user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// definitionInput reads --definition-file or --definition-json and extracts
// the definition from any supported envelope.
func definitionInput(cmd *cobra.Command) ([]byte, string, error) {
	file, _ := cmd.Flags().GetString("definition-file")
	inline, _ := cmd.Flags().GetString("definition-json")
	switch {
	case file != "" && inline != "":
		return nil, "", newUsageError("use only one of --definition-file and --definition-json")
	case file != "":
		raw, err := readInput(cmd, file)
		if err != nil {
			return nil, "", err
		}
		def, err := flowdef.ParseDefinitionInput(raw, file)
		return def, file, err
	case inline != "":
		def, err := flowdef.ParseDefinitionInput([]byte(inline), "definition-json")
		return def, "definition-input", err
	}
	return nil, "", newUsageError("definition-file or definition-json is required")
}

// interactive reports whether prompts can be shown.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// confirmSubmit prints the pending change to stderr and asks before a write.
func confirmSubmit(title, diff string) (bool, error) {
	if diff != "" {
		fmt.Fprintln(os.Stderr, diff)
	}
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Submit").
		Negative("Cancel").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// unifiedDiff renders before/after graph text as a unified diff.
func unifiedDiff(before, after string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return colorDiff(strings.TrimRight(diff, "\n"))
}

func colorDiff(diff string) string {
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = ui.RenderMuted(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = ui.RenderAccent(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = ui.RenderPass(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = ui.RenderFail(line)
		}
	}
	return strings.Join(lines, "\n")
}

// printValidation writes a validation summary in human form.
func printValidation(w io.Writer, v *graphsync.Validation) {
	if v == nil {
		return
	}
	status := ui.RenderPassIcon() + " " + ui.RenderPass("valid")
	if !v.Valid {
		status = ui.RenderFailIcon() + " " + ui.RenderFail("invalid")
	}
	fmt.Fprintf(w, "%s %s\n", status, ui.RenderMuted(v.Source))
	fmt.Fprintln(w, ui.RenderField("nodes", v.Stats.Nodes))
	fmt.Fprintln(w, ui.RenderField("edges", v.Stats.Edges))
	fmt.Fprintln(w, ui.RenderField("decide nodes", v.Stats.DecideNodes))
	fmt.Fprint(w, ui.RenderFindings(v.Errors, v.Warnings))
}
