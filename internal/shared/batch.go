package shared

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds the number of concurrent outbound calls to a third-party provider.
const DefaultBatchSize = 8

// RunBatched calls fn for every index in [0, n) in fixed-size concurrent batches, sleeping for
// cooldown between batches. fn owns its own error handling; results are order-insensitive.
func RunBatched(ctx context.Context, n, size int, cooldown time.Duration, fn func(ctx context.Context, i int)) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < n; start += size {
		end := min(start+size, n)

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				fn(ctx, i)
				return nil
			})
		}
		_ = g.Wait()

		if end < n && cooldown > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cooldown):
			}
		}
	}
	return nil
}
