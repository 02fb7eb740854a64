package flowdef

import (
	"errors"
	"fmt"
)

var (
	// ErrParse indicates text that is not valid JSON or does not have the
	// shape of a workflow definition.
	ErrParse = errors.New("parse error")

	// ErrConflict indicates the remote lock version no longer matches the one
	// the caller fetched.
	ErrConflict = errors.New("conflict")
)

// ParseError reports input that could not be turned into a definition.
type ParseError struct {
	Source string // where the text came from (flag name, file path, "replacement")
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "unable to parse workflow definition"
	}
	if e.Source != "" {
		msg = fmt.Sprintf("%s from %s", msg, e.Source)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// ConflictError reports a lock version mismatch. Callers must refetch and
// start over; it is never retried automatically.
type ConflictError struct {
	Expected LockVersion
	Current  LockVersion
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: workflow was modified (expected lock_version %d, current %d); refetch and retry",
		e.Expected, e.Current)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// CheckLock returns a *ConflictError when current differs from expected.
func CheckLock(expected, current LockVersion) error {
	if expected != current {
		return &ConflictError{Expected: expected, Current: current}
	}
	return nil
}
