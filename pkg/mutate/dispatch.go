// Package mutate feeds listings into bulk mutations.
//
// Deletes are split into batches of at most provider.MaxDeleteBatch
// identifiers and dispatched concurrently. Each batch succeeds or fails on its
// own; there is no cross-batch atomicity.
package mutate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/3leaps/s3keeper/pkg/batch"
	"github.com/3leaps/s3keeper/pkg/provider"
)

// DefaultParallelism is the number of concurrent delete requests.
const DefaultParallelism = 4

// Options configures a Dispatcher.
type Options struct {
	// BatchSize is the number of identifiers per request.
	// Zero uses provider.MaxDeleteBatch. Larger values are rejected by the
	// provider with ErrBatchTooLarge.
	BatchSize int

	// Parallelism bounds concurrent requests. Zero uses DefaultParallelism.
	Parallelism int

	// Quiet asks the service to report failures only.
	Quiet bool

	// OnBatch is called once per finished batch, concurrently from the batch
	// goroutines. It must be safe for concurrent use.
	OnBatch func(BatchResult)
}

// BatchResult is the outcome of one delete request.
type BatchResult struct {
	// Index is the submission order of the batch, starting at 0.
	Index int

	// Requested is the number of identifiers sent.
	Requested int

	// Deleted lists identifiers the service confirmed. Empty in quiet mode.
	Deleted []provider.ObjectIdentifier

	// Errors lists per-object failures reported by the service.
	Errors []provider.DeleteError

	// Err is set when the request itself failed. No object of the batch is
	// known to be deleted in that case.
	Err error

	Duration time.Duration
}

// DeletedCount returns the number of objects removed by the batch.
//
// In quiet mode the service lists failures only, so successes are derived.
func (r BatchResult) DeletedCount() int {
	if r.Err != nil {
		return 0
	}
	if len(r.Deleted) > 0 {
		return len(r.Deleted)
	}
	return r.Requested - len(r.Errors)
}

// FailedCount returns the number of objects not removed by the batch.
func (r BatchResult) FailedCount() int {
	if r.Err != nil {
		return r.Requested
	}
	return len(r.Errors)
}

// Dispatcher sends delete batches to a provider.
type Dispatcher struct {
	deleter provider.BulkDeleter
	opts    Options
}

// NewDispatcher creates a dispatcher over deleter.
func NewDispatcher(deleter provider.BulkDeleter, opts Options) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = provider.MaxDeleteBatch
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	return &Dispatcher{deleter: deleter, opts: opts}
}

// BatchSize returns the effective batch size.
func (d *Dispatcher) BatchSize() int {
	return d.opts.BatchSize
}

// Delete splits ids into batches and dispatches them. Results are ordered by
// batch index.
func (d *Dispatcher) Delete(ctx context.Context, ids []provider.ObjectIdentifier) []BatchResult {
	return d.Dispatch(ctx, batch.Chunk(ids, d.opts.BatchSize))
}

// Dispatch sends pre-built batches concurrently and waits for all of them.
// Results are ordered by batch index.
func (d *Dispatcher) Dispatch(ctx context.Context, batches [][]provider.ObjectIdentifier) []BatchResult {
	r := d.start()
	for _, b := range batches {
		r.submit(ctx, b)
	}
	return r.wait()
}

// run tracks the batches of one dispatch.
type run struct {
	d   *Dispatcher
	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	results []BatchResult
	next    int
}

func (d *Dispatcher) start() *run {
	return &run{d: d, sem: make(chan struct{}, d.opts.Parallelism)}
}

// submit blocks until a request slot is free, then sends ids in the
// background. A batch that never got a slot because ctx ended is recorded
// with ctx.Err() and no request is made.
func (r *run) submit(ctx context.Context, ids []provider.ObjectIdentifier) {
	if len(ids) == 0 {
		return
	}
	index := r.next
	r.next++

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		r.record(BatchResult{Index: index, Requested: len(ids), Err: ctx.Err()})
		return
	}

	// Started batches run to completion even if ctx is cancelled later.
	reqCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.sem
			r.wg.Done()
		}()

		started := time.Now()
		res := BatchResult{Index: index, Requested: len(ids)}
		out, err := r.d.deleter.DeleteObjects(reqCtx, ids, r.d.opts.Quiet)
		if err != nil {
			res.Err = err
		} else {
			res.Deleted = out.Deleted
			res.Errors = out.Errors
		}
		res.Duration = time.Since(started)
		r.record(res)
	}()
}

func (r *run) record(res BatchResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()

	if r.d.opts.OnBatch != nil {
		r.d.opts.OnBatch(res)
	}
}

func (r *run) wait() []BatchResult {
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Slice(r.results, func(i, j int) bool { return r.results[i].Index < r.results[j].Index })
	return r.results
}

// Summary aggregates batch results.
type Summary struct {
	Batches   int
	Requested int
	Deleted   int
	Failed    int

	// Err joins every request-level failure. Per-object failures are counted
	// in Failed but not joined here.
	Err error
}

// Summarize sums results.
func Summarize(results []BatchResult) Summary {
	var s Summary
	for _, r := range results {
		s.Batches++
		s.Requested += r.Requested
		s.Deleted += r.DeletedCount()
		s.Failed += r.FailedCount()
		if r.Err != nil {
			s.Err = multierr.Append(s.Err, fmt.Errorf("batch %d: %w", r.Index, r.Err))
		}
	}
	return s
}

// HasFailures reports whether any object was not deleted.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}
