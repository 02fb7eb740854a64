package graphcheck

import (
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaLinter checks a definition against a user-supplied JSON Schema in
// addition to the built-in graph grammar.
type SchemaLinter struct {
	path   string
	schema *jsonschema.Schema
}

// LoadSchema compiles the JSON Schema at path (a file path or URL).
func LoadSchema(path string) (*SchemaLinter, error) {
	c := jsonschema.NewCompiler()
	s, err := c.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return &SchemaLinter{path: path, schema: s}, nil
}

// Lint returns one message per schema violation found in def.
func (l *SchemaLinter) Lint(def any) []string {
	err := l.schema.Validate(def)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var out []string
	collectLeaves(ve, &out)
	return out
}

// Apply appends the schema violations for def to r's errors.
func (l *SchemaLinter) Apply(r *Report, def any) {
	r.Errors = append(r.Errors, l.Lint(def)...)
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		location := ve.InstanceLocation
		if location == "" {
			location = "/"
		}
		*out = append(*out, fmt.Sprintf("schema: %s: %s", location, ve.Message))
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}
