package graphedit

import (
	"strings"

	"github.com/flowctl/flowctl/internal/flowdef"
)

// IsInsideString reports whether byte offset falls inside a JSON string
// literal of text. It scans from the start of text, toggling on every
// double quote not preceded by an odd run of backslashes.
func IsInsideString(text string, offset int) bool {
	var s stringScanner
	return s.advance(text, offset)
}

// stringScanner tracks string-literal state over a single text while offsets
// only move forward, so repeated queries cost one pass in total.
type stringScanner struct {
	pos    int
	inside bool
}

// advance moves the scanner to offset and returns whether that offset is
// inside a string literal. Offsets behind the current position return the
// current state.
func (s *stringScanner) advance(text string, offset int) bool {
	if offset > len(text) {
		offset = len(text)
	}
	for ; s.pos < offset; s.pos++ {
		if text[s.pos] == '"' && !isEscaped(text, s.pos) {
			s.inside = !s.inside
		}
	}
	return s.inside
}

func isEscaped(text string, index int) bool {
	backslashes := 0
	for i := index - 1; i >= 0 && text[i] == '\\'; i-- {
		backslashes++
	}
	return backslashes%2 == 1
}

var cLikeUnescapes = []struct{ from, to string }{
	{`\n`, "\n"},
	{`\r`, "\r"},
	{`\t`, "\t"},
	{`\"`, `"`},
	{`\\`, `\`},
}

// unescapeCLike decodes the common C-style escapes one after another in a
// fixed order.
func unescapeCLike(text string) string {
	for _, r := range cLikeUnescapes {
		text = strings.ReplaceAll(text, r.from, r.to)
	}
	return text
}

// stringBody returns text encoded as the inside of a JSON string literal.
func stringBody(text string) string {
	quoted := flowdef.QuoteString(text)
	return quoted[1 : len(quoted)-1]
}

// inStringReplacement prepares newText for insertion inside a JSON string.
func inStringReplacement(newText string) string {
	return stringBody(unescapeCLike(newText))
}
