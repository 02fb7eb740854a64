package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions:
// NO_COLOR always wins, then CLICOLOR=0 disables, then CLICOLOR_FORCE
// enables even without a TTY. Otherwise color is used only on a terminal.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status icons may use non-ASCII glyphs.
// FLOWCTL_NO_EMOJI disables them.
func ShouldUseEmoji() bool {
	if os.Getenv("FLOWCTL_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// Init sets the lipgloss color profile for the current process. It must be
// called once before rendering.
func Init() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}
