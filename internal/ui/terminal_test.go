package ui

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		cliColor      string
		cliColorForce string
		wantColor     bool
	}{
		{name: "NO_COLOR disables color", noColor: "1", wantColor: false},
		{name: "CLICOLOR=0 disables color", cliColor: "0", wantColor: false},
		{name: "CLICOLOR_FORCE enables color even in non-TTY", cliColorForce: "1", wantColor: true},
		{name: "NO_COLOR takes precedence over CLICOLOR_FORCE", noColor: "1", cliColorForce: "1", wantColor: false},
		{name: "no TTY under go test", wantColor: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, "NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE")
			if tt.noColor != "" {
				t.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.cliColor != "" {
				t.Setenv("CLICOLOR", tt.cliColor)
			}
			if tt.cliColorForce != "" {
				t.Setenv("CLICOLOR_FORCE", tt.cliColorForce)
			}

			if !tt.wantColor && tt.noColor == "" && tt.cliColor == "" && IsTerminal() {
				t.Skip("stdout is a terminal")
			}
			assert.Equal(t, tt.wantColor, ShouldUseColor())
		})
	}
}

func TestShouldUseEmoji(t *testing.T) {
	t.Setenv("FLOWCTL_NO_EMOJI", "1")
	assert.False(t, ShouldUseEmoji())
	assert.Equal(t, "x", icon(IconFail, "x"))
}

func TestRenderFindingsPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FLOWCTL_NO_EMOJI", "1")
	Init()

	got := RenderFindings([]string{"edge[0] has invalid source: a"}, []string{"node b has unknown node_type: x"})
	assert.Equal(t, "  x edge[0] has invalid source: a\n  ! node b has unknown node_type: x\n", got)
	assert.Empty(t, RenderFindings(nil, nil))
}

func TestRenderField(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	Init()

	assert.Equal(t, "lock_version  7", RenderField("lock_version", 7))
}

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "") // registers restore
		_ = os.Unsetenv(key)
	}
}
