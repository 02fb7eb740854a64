package graphsync

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flowctl/flowctl/internal/graphcheck"
)

// DefaultConcurrency bounds parallel fetches in ValidateWorkflows.
const DefaultConcurrency = 4

// ValidateWorkflows fetches and validates each workflow. Results are in the
// order of ids; the first fetch error cancels the remaining work.
func ValidateWorkflows(ctx context.Context, store Store, ids []string, concurrency int, schema *graphcheck.SchemaLinter) ([]*Validation, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]*Validation, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			wf, err := store.GetDefinition(ctx, id)
			if err != nil {
				return err
			}
			v, err := Check(fmt.Sprintf("workflow:%s", id), wf.Definition, schema)
			if err != nil {
				return fmt.Errorf("workflow %s: %w", id, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
