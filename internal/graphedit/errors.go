package graphedit

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrAmbiguousMatch = errors.New("ambiguous match")
)

// EditError describes why a replacement was refused. The document is never
// partially edited when one is returned.
type EditError struct {
	Kind        error  // one of the sentinels above
	Msg         string // user-facing message
	Variant     string // matched variant, for ambiguous matches
	Text        string // the searched text, for ambiguous matches
	Occurrences int    // number of (possibly overlapping) occurrences
}

func (e *EditError) Error() string {
	if e.Kind == ErrAmbiguousMatch && e.Occurrences > 0 {
		return fmt.Sprintf("%s (%d occurrences of %s variant)", e.Msg, e.Occurrences, e.Variant)
	}
	return e.Msg
}

func (e *EditError) Unwrap() error { return e.Kind }
