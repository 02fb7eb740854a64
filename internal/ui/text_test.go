package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateSimple(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short text unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncate with ellipsis", "hello world", 8, "hello..."},
		{"very short maxLen", "hello world", 3, "..."},
		{"empty string", "", 10, ""},
		{"unicode chars", "héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateSimple(tt.input, tt.maxLen))
		})
	}
}

func TestTruncateLines(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	Init()

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line" + string(rune('a'+i))
	}
	text := strings.Join(lines, "\n")

	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "a\nb", TruncateLines("a\nb", 5, 1))
		assert.Equal(t, text, TruncateLines(text, 0, 2))
	})

	t.Run("keeps both ends", func(t *testing.T) {
		got := TruncateLines(text, 10, 2)
		assert.Equal(t, "linea\nlineb\n... (16 lines hidden) ...\nlines\nlinet", got)
	})

	t.Run("too small for context", func(t *testing.T) {
		got := TruncateLines(text, 2, 3)
		assert.Equal(t, "linea\nlineb\n...", got)
	})
}
