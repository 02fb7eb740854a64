package graphedit

import "testing"

func TestNormalizeEditText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `"label": "next"`, `"label": "next"`},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"fence with language", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without language", "  ```\nhello\n```  ", "hello"},
		{"fence with crlf", "```json\r\n\"x\"\r\n```", `"x"`},
		{"pipe line numbers", "  12 |   \"id\": \"start\",\n  13 |   \"x\": 1", "  \"id\": \"start\",\n  \"x\": 1"},
		{"colon line numbers", "4: foo\n5:bar", "foo\nbar"},
		{"numbered fence", "```\n   1 | a\n   2 | b\n```", "a\nb"},
		{"unfenced text keeps surrounding space", "  a  ", "  a  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEditText(tt.input); got != tt.want {
				t.Errorf("NormalizeEditText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
