package graphcheck

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructuralViolation is matched by the error Report.Err returns.
var ErrStructuralViolation = errors.New("structural violation")

// Stats summarizes the validated graph.
type Stats struct {
	Nodes       int `json:"nodes"`
	Edges       int `json:"edges"`
	DecideNodes int `json:"decideNodes"`
}

// Report collects every finding from one validation pass, in document order.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Stats    Stats    `json:"stats"`
}

// Valid reports whether no errors were found. Warnings do not count.
func (r *Report) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns a *ViolationError when the report has errors, nil otherwise.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return &ViolationError{Errors: r.Errors}
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ViolationError carries the validator errors of a rejected graph.
type ViolationError struct {
	Errors []string
}

func (e *ViolationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid workflow graph: " + e.Errors[0]
	}
	return fmt.Sprintf("invalid workflow graph: %d errors:\n  %s", len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ViolationError) Unwrap() error { return ErrStructuralViolation }
