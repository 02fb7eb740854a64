package graphedit

import (
	"regexp"
	"strings"
)

var (
	openingFence = regexp.MustCompile("^```[a-zA-Z0-9_-]*\n?")
	closingFence = regexp.MustCompile("```$")

	// "  12 | text" as printed by get-graph, and "12: text" from editors.
	pipeLineNumber  = regexp.MustCompile(`^\s*\d+\s*\|\s?`)
	colonLineNumber = regexp.MustCompile(`^\s*\d+:\s?`)
)

// NormalizeEditText cleans up text pasted from a terminal or editor before
// it is used as old or new text: line endings become \n, a surrounding
// ``` fence (with optional language tag) is removed, and line-number
// prefixes are stripped from every line.
func NormalizeEditText(text string) string {
	return stripLineNumbers(stripCodeFences(normalizeLineEndings(text)))
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	withoutFirst := openingFence.ReplaceAllString(trimmed, "")
	return strings.TrimSpace(closingFence.ReplaceAllString(withoutFirst, ""))
}

func stripLineNumbers(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = pipeLineNumber.ReplaceAllString(line, "")
		lines[i] = colonLineNumber.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}
