// Package lockfile serializes read-modify-write access to small project files
// (the config file, the event log) across concurrent flowctl processes using
// advisory file locks on a sibling ".lock" file.
package lockfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrLockBusy is returned by TryLock when another process holds the lock.
var ErrLockBusy = errors.New("lock already held by another process")

// Lock blocks until it holds an exclusive lock for path and returns the
// function that releases it.
func Lock(path string) (release func() error, err error) {
	return acquire(path, flockExclusiveBlocking)
}

// TryLock is like Lock but returns ErrLockBusy instead of waiting.
func TryLock(path string) (release func() error, err error) {
	return acquire(path, flockExclusiveNonBlock)
}

func acquire(path string, lock func(*os.File) error) (func() error, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0600) // #nosec G304 - path is a project file
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return func() error {
		unlockErr := flockUnlock(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}
