package mutate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/3leaps/s3keeper/pkg/provider"
)

// MoveResult is the outcome of one rename.
type MoveResult struct {
	Op  provider.MoveOperation
	Err error
}

// MoveAll runs renames with bounded concurrency. Results are in the order of
// ops. The returned error joins every failure.
func MoveAll(ctx context.Context, mover provider.Mover, ops []provider.MoveOperation, parallelism int) ([]MoveResult, error) {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	results := make([]MoveResult, len(ops))
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i, op := range ops {
		results[i].Op = op
		if err := validateMove(op); err != nil {
			results[i].Err = err
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, op provider.MoveOperation) {
			defer func() {
				<-sem
				wg.Done()
			}()
			results[i].Err = mover.Move(ctx, op)
		}(i, op)
	}
	wg.Wait()

	var err error
	for _, r := range results {
		err = multierr.Append(err, r.Err)
	}
	return results, err
}

func validateMove(op provider.MoveOperation) error {
	if op.Source == "" || op.Destination == "" {
		return errors.New("move requires source and destination")
	}
	if op.Source == op.Destination {
		return errors.New("move source and destination are the same")
	}
	return nil
}
