// Package batch groups item sequences into size-bounded batches.
//
// The default size is provider.MaxDeleteBatch, the multi-delete ceiling.
// Nothing here issues requests; pkg/mutate feeds the batches to providers.
package batch

import (
	"context"
	"iter"

	"github.com/3leaps/s3keeper/pkg/provider"
)

// DefaultSize is used when a size of zero or less is requested.
const DefaultSize = provider.MaxDeleteBatch

func normalizeSize(size int) int {
	if size <= 0 {
		return DefaultSize
	}
	return size
}

// Accumulator groups items added one at a time into fixed-size batches.
//
// Accumulator is not safe for concurrent use.
type Accumulator[T any] struct {
	size    int
	pending []T
}

// NewAccumulator returns an accumulator emitting batches of size items.
func NewAccumulator[T any](size int) *Accumulator[T] {
	size = normalizeSize(size)
	return &Accumulator[T]{size: size, pending: make([]T, 0, size)}
}

// Add appends item. When the batch reaches its size, the full batch is
// returned with ok=true and the accumulator starts a new one.
func (a *Accumulator[T]) Add(item T) (full []T, ok bool) {
	a.pending = append(a.pending, item)
	if len(a.pending) < a.size {
		return nil, false
	}
	full = a.pending
	a.pending = make([]T, 0, a.size)
	return full, true
}

// Flush returns the partial batch, or nil when nothing is pending.
func (a *Accumulator[T]) Flush() []T {
	if len(a.pending) == 0 {
		return nil
	}
	out := a.pending
	a.pending = make([]T, 0, a.size)
	return out
}

// Len returns the number of pending items.
func (a *Accumulator[T]) Len() int {
	return len(a.pending)
}

// Chunk splits items into consecutive batches of at most size items.
// The batches share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	size = normalizeSize(size)
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		chunks = append(chunks, items[i:end:end])
	}
	return chunks
}

// Collect materializes seq, stopping after limit items.
//
// truncated is true when the sequence had more items than limit. A limit of
// zero or less collects everything. The context is checked between items.
func Collect[T any](ctx context.Context, seq iter.Seq[T], limit int) (items []T, truncated bool, err error) {
	for item := range seq {
		if err := ctx.Err(); err != nil {
			return items, false, err
		}
		if limit > 0 && len(items) >= limit {
			return items, true, nil
		}
		items = append(items, item)
	}
	return items, false, nil
}
