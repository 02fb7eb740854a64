package flowdef

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtractDefinition locates the graph document inside raw. It accepts a bare
// {nodes, edges} document as well as the envelopes the CLI itself prints and
// the store returns:
//
//	{"ok": true, "data": {...}}            (unwrapped recursively)
//	{"definition": {...}}
//	{"flow": {"definition": {...}}}
//	{"workflow": {"definition": {...}}}
//
// The returned bytes are a sub-slice of raw, so key order is preserved.
func ExtractDefinition(raw []byte) (json.RawMessage, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, &ParseError{Err: err}
	}
	if record == nil {
		return nil, &ParseError{Msg: "workflow definition must be a JSON object"}
	}

	if bytes.Equal(bytes.TrimSpace(record["ok"]), []byte("true")) && isObject(record["data"]) {
		return ExtractDefinition(record["data"])
	}
	if isObject(record["definition"]) {
		return trim(record["definition"]), nil
	}
	for _, wrapper := range []string{"flow", "workflow"} {
		if !isObject(record[wrapper]) {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(record[wrapper], &inner); err == nil && isObject(inner["definition"]) {
			return trim(inner["definition"]), nil
		}
	}
	if truthy(record["nodes"]) && truthy(record["edges"]) {
		return trim(raw), nil
	}
	return nil, &ParseError{Msg: "no workflow definition found"}
}

// ParseDefinitionInput extracts a definition from user-supplied text. Files
// named *.yaml or *.yml are read as YAML and converted to JSON first.
func ParseDefinitionInput(raw []byte, name string) (json.RawMessage, error) {
	data := raw
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		converted, err := yamlToJSON(raw)
		if err != nil {
			return nil, &ParseError{Source: name, Err: err}
		}
		data = converted
	}
	def, err := ExtractDefinition(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok && name != "" {
			pe.Source = name
		}
		return nil, err
	}
	return def, nil
}

// DecodeValue decodes raw JSON into generic values for structural checks.
func DecodeValue(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &ParseError{Err: err}
	}
	return v, nil
}

// DecodeObject decodes raw JSON that must be an object.
func DecodeObject(raw []byte) (map[string]any, error) {
	v, err := DecodeValue(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Msg: "workflow definition must be a JSON object"}
	}
	return m, nil
}

// SHA256 returns the hex digest of text.
func SHA256(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// WithLineNumbers prefixes every line with a right-aligned line number and a
// pipe, e.g. "  12 | text".
func WithLineNumbers(text string) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%4d | %s", i+1, line)
	}
	return b.String()
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return Encode(jsonCompatible(v))
}

// jsonCompatible rewrites the map[any]any values yaml can produce for
// non-string keys into map[string]any.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = jsonCompatible(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = jsonCompatible(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = jsonCompatible(item)
		}
		return t
	default:
		return v
	}
}

func trim(raw json.RawMessage) json.RawMessage {
	return bytes.TrimSpace(raw)
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// truthy mirrors how a loosely typed caller would test for presence: null,
// false, 0 and "" count as absent.
func truthy(raw json.RawMessage) bool {
	switch s := string(bytes.TrimSpace(raw)); s {
	case "", "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}
