// Package flowdef defines the workflow graph document and the metadata the
// remote store keeps alongside it.
package flowdef

import (
	"bytes"
	"encoding/json"
)

// LockVersion is the optimistic-concurrency token minted by the remote store.
// It is compared for equality only.
type LockVersion int64

// Definition is a workflow graph: typed nodes connected by labeled edges.
type Definition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a single step in a workflow graph.
type Node struct {
	ID   string   `json:"id"`
	Data NodeData `json:"data"`
}

// NodeData carries the node kind and its kind-specific configuration.
type NodeData struct {
	NodeType string         `json:"node_type"`
	Config   map[string]any `json:"config,omitempty"`
}

// Edge is an out-transition from Source to Target taken when Label matches.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Workflow is the remote store's record for a workflow. Definition is only
// populated by the definition endpoint and is kept raw so its key order and
// escaping survive a round trip.
type Workflow struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name,omitempty"`
	Description            string          `json:"description,omitempty"`
	Status                 string          `json:"status,omitempty"`
	LockVersion            LockVersion     `json:"lock_version"`
	MessageDebounceSeconds *int            `json:"message_debounce_seconds,omitempty"`
	ProjectID              string          `json:"project_id,omitempty"`
	UpdatedAt              string          `json:"updated_at,omitempty"`
	Definition             json.RawMessage `json:"definition,omitempty"`
}

// Summary returns a copy of w without the definition body.
func (w *Workflow) Summary() *Workflow {
	if w == nil {
		return nil
	}
	s := *w
	s.Definition = nil
	return &s
}

// Marshal encodes d as compact JSON.
func (d *Definition) Marshal() (json.RawMessage, error) {
	return Encode(d)
}

// Encode marshals v as compact JSON without HTML escaping, so <, > and &
// inside definitions travel as themselves.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
