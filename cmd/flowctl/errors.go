package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/graphcheck"
	"github.com/flowctl/flowctl/internal/graphedit"
	"github.com/flowctl/flowctl/internal/graphsync"
	"github.com/flowctl/flowctl/internal/platform"
)

// FatalError writes an error message to stderr and exits with code 1.
// Use this for fatal errors that prevent the command from completing.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns.
// Use this for auxiliary steps (telemetry, event log) whose failure must not
// fail the command.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// usageError is a problem with the command line itself.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// errFailed makes the command exit 1 after it has already written its
// result, for example validate-graph --strict on an invalid graph.
var errFailed = errors.New("command failed")

// Error codes reported in the JSON error envelope.
const (
	codeInvalidInput        = "invalid_input"
	codeNotFound            = "not_found"
	codeAmbiguousMatch      = "ambiguous_match"
	codeParseError          = "parse_error"
	codeStructuralViolation = "structural_violation"
	codeConflict            = "conflict"
	codeAPIError            = "api_error"
	codeAborted             = "aborted"
	codeError               = "error"
)

type errorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code"`

	hint string
}

// classify maps err onto the JSON error envelope.
func classify(err error) *errorBody {
	body := &errorBody{Message: err.Error(), Code: codeError}

	var (
		conflict  *flowdef.ConflictError
		edit      *graphedit.EditError
		violation *graphcheck.ViolationError
		apiErr    *platform.APIError
		netErr    *platform.NetworkError
		usage     *usageError
	)
	switch {
	case errors.As(err, &conflict):
		body.Code = codeConflict
		body.Details = map[string]any{
			"expected_lock_version": conflict.Expected,
			"current_lock_version":  conflict.Current,
		}
		body.hint = "run 'flowctl get-graph <workflow-id>' to refetch the graph and its lock_version"
	case errors.As(err, &edit):
		switch {
		case errors.Is(err, graphedit.ErrAmbiguousMatch):
			body.Code = codeAmbiguousMatch
			body.Details = map[string]any{
				"matched_variant": edit.Variant,
				"occurrences":     edit.Occurrences,
			}
			body.hint = "add surrounding context to the old text, or pass --replace-all"
		case errors.Is(err, graphedit.ErrNotFound):
			body.Code = codeNotFound
			body.hint = "copy the old text from 'flowctl get-graph' output; line number prefixes are stripped"
		default:
			body.Code = codeInvalidInput
		}
	case errors.As(err, &violation):
		body.Code = codeStructuralViolation
		body.Details = map[string]any{"errors": violation.Errors}
		body.hint = "fix the reported errors, or pass --skip-validation to submit anyway"
	case errors.Is(err, flowdef.ErrParse):
		body.Code = codeParseError
	case errors.As(err, &apiErr):
		body.Code = codeAPIError
		if errors.Is(err, flowdef.ErrConflict) {
			body.Code = codeConflict
		}
		body.Status = apiErr.Status
		if len(apiErr.Body) > 0 {
			body.Details = apiErr.Body
		}
	case errors.As(err, &netErr):
		body.Code = codeAPIError
	case errors.Is(err, platform.ErrMissingConfig):
		body.Code = codeInvalidInput
		body.hint = "set KAPSO_API_BASE_URL and KAPSO_API_KEY, or run 'flowctl config set api.base_url <url>'"
	case errors.As(err, &usage):
		body.Code = codeInvalidInput
	case errors.Is(err, graphsync.ErrAborted):
		body.Code = codeAborted
	}
	return body
}

// reportError writes err as a JSON envelope on stdout in --json mode, or as
// "Error:"/"Hint:" lines on stderr otherwise.
func reportError(stdout, stderr io.Writer, err error) {
	if errors.Is(err, errFailed) {
		return
	}
	body := classify(err)
	if jsonOutput {
		_ = outputJSON(stdout, envelope{OK: false, Error: body})
		return
	}
	fmt.Fprintf(stderr, "Error: %s\n", body.Message)
	var violation *graphcheck.ViolationError
	if errors.As(err, &violation) {
		for _, e := range violation.Errors {
			fmt.Fprintf(stderr, "  - %s\n", e)
		}
	}
	if body.hint != "" {
		fmt.Fprintf(stderr, "Hint: %s\n", body.hint)
	}
}
