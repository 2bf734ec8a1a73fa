package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Parallel runs fn for every index in [0, n) with at most workers goroutines
// (GOMAXPROCS when workers <= 0). The first error cancels ctx for the
// remaining calls and is returned.
func Parallel(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i)
		})
	}
	return g.Wait()
}
