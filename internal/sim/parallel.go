package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent simulations, each on its own world.
type Ensemble struct {
	builds  []func() (*Simulator, error)
	workers int
}

// NewEnsemble runs the simulators returned by builds on up to workers
// goroutines.
func NewEnsemble(workers int, builds ...func() (*Simulator, error)) *Ensemble {
	return &Ensemble{builds: builds, workers: max(workers, 1)}
}

// Run returns the results in build order. The first failure cancels the
// runs that have not finished.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(e.builds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, build := range e.builds {
		i, build := i, build
		g.Go(func() error {
			s, err := build()
			if err != nil {
				return err
			}
			results[i], err = s.Run(ctx, cfg)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
