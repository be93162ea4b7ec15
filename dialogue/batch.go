package dialogue

import (
	"context"
	"fmt"

	"github.com/tbxark/soliddialog/types"
	"golang.org/x/sync/errgroup"
)

// GenerateBatch runs independent dialogues with at most concurrency in flight
// and returns results in request order. The first failure cancels the rest.
func GenerateBatch(ctx context.Context, gen *Generator, reqs []*Request, concurrency int) ([]*types.Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]*types.Result, len(reqs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, req := range reqs {
		eg.Go(func() error {
			res, err := gen.GenerateDialogue(ctx, req)
			if err != nil {
				return fmt.Errorf("dialogue %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
