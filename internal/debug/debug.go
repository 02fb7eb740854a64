// Package debug holds the CLI's diagnostic output switches and the local
// event log.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowctl/flowctl/internal/lockfile"
)

// ProjectDirName is the per-project settings directory searched for upward
// from the working directory.
const ProjectDirName = ".flowctl"

var (
	enabled     = os.Getenv("FLOWCTL_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	logMutex    sync.Mutex
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// LogEvent appends a line to .flowctl/events.log in the nearest project
// directory. Outside a project it does nothing.
// Format: TIMESTAMP|EVENT|WORKFLOW_ID|USER|DETAILS
func LogEvent(event, workflowID, details string) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return
	}
	logPath := filepath.Join(projectRoot, ProjectDirName, "events.log")

	if workflowID == "" {
		workflowID = "none"
	}
	user := os.Getenv("FLOWCTL_ACTOR")
	if user == "" {
		user = os.Getenv("USER")
		if user == "" {
			user = "unknown"
		}
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("%s|%s|%s|%s|%s\n", timestamp, event, workflowID, user, details)

	logMutex.Lock()
	defer logMutex.Unlock()

	release, err := lockfile.Lock(logPath)
	if err != nil {
		return
	}
	defer func() { _ = release() }()

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// Logging must never fail the command.
		return
	}
	defer file.Close()

	_, _ = file.WriteString(entry)
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		projectDir := filepath.Join(dir, ProjectDirName)
		if info, err := os.Stat(projectDir); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a flowctl project")
		}
		dir = parent
	}
}
