package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flowctl/flowctl/internal/flowdef"
)

// SeedWorkflow is one entry of a seed file.
type SeedWorkflow struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
	Definition  json.RawMessage `json:"definition"`
}

// LoadSeed creates the workflows listed in the JSON file at path. The
// definition of each entry may be a bare graph or any envelope flowctl
// prints (for example a saved get-graph result).
func LoadSeed(ctx context.Context, store *MemoryStore, path string) ([]*flowdef.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var entries []SeedWorkflow
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	created := make([]*flowdef.Workflow, 0, len(entries))
	for i, entry := range entries {
		var def json.RawMessage
		if len(entry.Definition) > 0 {
			def, err = flowdef.ExtractDefinition(entry.Definition)
			if err != nil {
				return nil, fmt.Errorf("seed entry %d (%s): %w", i, entry.Name, err)
			}
		}
		wf, err := store.Create(ctx, NewWorkflow{
			Name:        entry.Name,
			Description: entry.Description,
			Status:      entry.Status,
			ProjectID:   entry.ProjectID,
			Definition:  def,
		})
		if err != nil {
			return nil, fmt.Errorf("seed entry %d (%s): %w", i, entry.Name, err)
		}
		created = append(created, wf)
	}
	return created, nil
}
