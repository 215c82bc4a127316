// Package walker turns single-page provider calls into complete traversals.
//
// Walkers are pull-based paginators: each NextPage call issues exactly one
// request. They own no goroutines, so a consumer that stops pulling leaks
// nothing. Stream adapts a walker to a channel when a push model is needed.
package walker

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/time/rate"

	"github.com/3leaps/s3keeper/pkg/provider"
)

// ErrNoMorePages is returned by NextPage after the traversal has finished.
var ErrNoMorePages = errors.New("no more pages")

// ErrMaxPages is returned by NextPage when Options.MaxPages is exhausted.
var ErrMaxPages = errors.New("page limit reached")

// Options configures a BucketWalker.
type Options struct {
	// StartPrefix is the first prefix listed. Empty lists from the bucket root.
	StartPrefix string

	// Delimiter groups keys into folders. Empty lists every key under
	// StartPrefix in one flat sequence.
	Delimiter string

	// PageSize is passed as MaxKeys. Zero uses the provider default.
	PageSize int

	// Recurse descends into every folder discovered under StartPrefix.
	// Requires a Delimiter; without one there are no folders to descend.
	Recurse bool

	// RateLimit is the maximum requests per second. Zero means unlimited.
	RateLimit float64

	// Limiter, when set, replaces RateLimit and may be shared between
	// walkers so concurrent walks draw from one request budget.
	Limiter *rate.Limiter

	// MaxPages stops the walk after this many pages. Zero means unlimited.
	MaxPages int
}

// BucketWalker pages through a bucket listing, optionally descending into
// every folder.
//
// Folders are expanded at most once. A folder reported again by a later page
// or by a sibling listing is ignored. The order in which folders are visited
// is lexicographic by prefix but callers should not depend on it.
//
// BucketWalker is not safe for concurrent use.
type BucketWalker struct {
	lister  provider.Lister
	opts    Options
	limiter *rate.Limiter

	current string
	token   string
	visited map[string]struct{}
	pending map[string]struct{}

	pages int
	done  bool
}

// NewBucketWalker creates a walker starting at opts.StartPrefix.
func NewBucketWalker(lister provider.Lister, opts Options) *BucketWalker {
	w := &BucketWalker{
		lister:  lister,
		opts:    opts,
		current: opts.StartPrefix,
		visited: make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
	switch {
	case opts.Limiter != nil:
		w.limiter = opts.Limiter
	case opts.RateLimit > 0:
		w.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return w
}

// HasMorePages reports whether NextPage will issue another request.
func (w *BucketWalker) HasMorePages() bool {
	return !w.done
}

// Pages returns the number of pages fetched so far.
func (w *BucketWalker) Pages() int {
	return w.pages
}

// NextPage fetches the next page.
//
// A fetch error ends the walk: HasMorePages becomes false and the error is
// returned. Pages already returned remain valid.
func (w *BucketWalker) NextPage(ctx context.Context) (*provider.PageResult, error) {
	if w.done {
		return nil, ErrNoMorePages
	}
	if w.opts.MaxPages > 0 && w.pages >= w.opts.MaxPages {
		w.done = true
		return nil, ErrMaxPages
	}
	if err := waitForRateLimit(ctx, w.limiter); err != nil {
		w.done = true
		return nil, err
	}

	page, err := w.lister.ListPage(ctx, provider.ListPageOptions{
		Prefix:            w.current,
		Delimiter:         w.opts.Delimiter,
		ContinuationToken: w.token,
		MaxKeys:           w.opts.PageSize,
	})
	if err != nil {
		w.done = true
		return nil, err
	}
	w.pages++

	for _, f := range page.Folders {
		if f.Prefix == w.current {
			continue
		}
		if _, seen := w.visited[f.Prefix]; seen {
			continue
		}
		w.pending[f.Prefix] = struct{}{}
	}

	switch {
	case page.HasMore():
		w.token = page.NextContinuationToken
	case w.opts.Recurse && len(w.pending) > 0:
		w.visited[w.current] = struct{}{}
		w.current = w.popPending()
		w.token = ""
	default:
		w.done = true
	}

	return page, nil
}

// popPending removes and returns the smallest pending prefix, marking it
// visited.
func (w *BucketWalker) popPending() string {
	keys := make([]string, 0, len(w.pending))
	for k := range w.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	next := keys[0]
	delete(w.pending, next)
	w.visited[next] = struct{}{}
	return next
}

func waitForRateLimit(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
