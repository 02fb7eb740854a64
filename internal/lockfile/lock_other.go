//go:build !unix && !windows

package lockfile

import "os"

// File locking is unavailable (js/wasm, plan9); callers run single-process.
func flockExclusiveBlocking(*os.File) error { return nil }
func flockExclusiveNonBlock(*os.File) error { return nil }
func flockUnlock(*os.File) error            { return nil }
