// Package devserver emulates the workflow platform API locally: an
// in-memory, lock-versioned workflow store behind the same HTTP routes the
// CLI talks to.
package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/graphcheck"
)

var (
	ErrWorkflowNotFound = errors.New("devserver: workflow not found")
	ErrInvalidWorkflow  = errors.New("devserver: invalid workflow")
)

// emptyDefinition is the graph a workflow gets when created without one: a
// lone start node.
var emptyDefinition = mustMarshal(&flowdef.Definition{
	Nodes: []flowdef.Node{{ID: graphcheck.StartNodeID, Data: flowdef.NodeData{NodeType: graphcheck.NodeStart}}},
	Edges: []flowdef.Edge{},
})

func mustMarshal(def *flowdef.Definition) json.RawMessage {
	raw, err := def.Marshal()
	if err != nil {
		panic(fmt.Sprintf("devserver: marshal starter definition: %v", err))
	}
	return raw
}

// NewWorkflow is the input for MemoryStore.Create.
type NewWorkflow struct {
	Name        string
	Description string
	Status      string
	ProjectID   string
	Definition  json.RawMessage
}

// MemoryStore keeps workflows in memory. Every accepted definition write
// mints the next lock version; writes carrying a stale one are refused.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*flowdef.Workflow
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*flowdef.Workflow),
		now:       time.Now,
	}
}

// Create stores a new workflow at lock version 1.
func (s *MemoryStore) Create(_ context.Context, in NewWorkflow) (*flowdef.Workflow, error) {
	def := in.Definition
	if len(bytes.TrimSpace(def)) == 0 {
		def = emptyDefinition
	}
	compact, err := compactObject(def)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = "draft"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wf := &flowdef.Workflow{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Status:      status,
		LockVersion: 1,
		ProjectID:   in.ProjectID,
		UpdatedAt:   s.timestamp(),
		Definition:  compact,
	}
	s.workflows[wf.ID] = wf
	return wf.Summary(), nil
}

// List returns every workflow without its definition, most recently
// updated first.
func (s *MemoryStore) List(_ context.Context) []*flowdef.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*flowdef.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetWorkflow returns workflow metadata.
func (s *MemoryStore) GetWorkflow(_ context.Context, id string) (*flowdef.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return wf.Summary(), nil
}

// GetDefinition returns the workflow together with its definition.
func (s *MemoryStore) GetDefinition(_ context.Context, id string) (*flowdef.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	cp := *wf
	cp.Definition = append(json.RawMessage(nil), wf.Definition...)
	return &cp, nil
}

// UpdateDefinition replaces the definition if expected is the current lock
// version.
func (s *MemoryStore) UpdateDefinition(_ context.Context, id string, def json.RawMessage, expected flowdef.LockVersion) (*flowdef.Workflow, error) {
	return s.update(id, def, &expected)
}

// update replaces the definition. A nil expected skips the lock check, as
// for clients that do not send a lock version.
func (s *MemoryStore) update(id string, def json.RawMessage, expected *flowdef.LockVersion) (*flowdef.Workflow, error) {
	compact, err := compactObject(def)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	if expected != nil {
		if err := flowdef.CheckLock(*expected, wf.LockVersion); err != nil {
			return nil, err
		}
	}
	wf.Definition = compact
	wf.LockVersion++
	wf.UpdatedAt = s.timestamp()
	return wf.Summary(), nil
}

func (s *MemoryStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func compactObject(def json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(def)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: definition must be a JSON object", ErrInvalidWorkflow)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	return buf.Bytes(), nil
}
