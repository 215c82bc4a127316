package walker

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/3leaps/s3keeper/pkg/provider"
)

// VersionOptions configures a VersionWalker.
type VersionOptions struct {
	Prefix    string
	Delimiter string

	// PageSize is passed as MaxKeys. Zero uses provider.DefaultVersionPageSize.
	PageSize int

	RateLimit float64

	// Limiter, when set, replaces RateLimit and may be shared with other
	// walkers.
	Limiter *rate.Limiter

	MaxPages int
}

// VersionWalker pages through the versions listing of one prefix.
//
// The key marker and version-id marker are always threaded together; a page
// without both ends the walk.
type VersionWalker struct {
	lister  provider.VersionLister
	opts    VersionOptions
	limiter *rate.Limiter

	marker *provider.VersionMarker
	pages  int
	done   bool
}

// NewVersionWalker creates a walker over opts.Prefix.
func NewVersionWalker(lister provider.VersionLister, opts VersionOptions) *VersionWalker {
	if opts.PageSize <= 0 {
		opts.PageSize = provider.DefaultVersionPageSize
	}
	w := &VersionWalker{lister: lister, opts: opts}
	switch {
	case opts.Limiter != nil:
		w.limiter = opts.Limiter
	case opts.RateLimit > 0:
		w.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return w
}

// HasMorePages reports whether NextPage will issue another request.
func (w *VersionWalker) HasMorePages() bool {
	return !w.done
}

// Pages returns the number of pages fetched so far.
func (w *VersionWalker) Pages() int {
	return w.pages
}

// NextPage fetches the next versions page.
func (w *VersionWalker) NextPage(ctx context.Context) (*provider.VersionPageResult, error) {
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

	opts := provider.ListVersionsOptions{
		Prefix:    w.opts.Prefix,
		Delimiter: w.opts.Delimiter,
		MaxKeys:   w.opts.PageSize,
	}
	if w.marker != nil {
		opts.KeyMarker = w.marker.KeyMarker
		opts.VersionIDMarker = w.marker.VersionIDMarker
	}

	page, err := w.lister.ListVersionsPage(ctx, opts)
	if err != nil {
		w.done = true
		return nil, err
	}
	w.pages++

	if page.NextMarker == nil {
		w.done = true
	}
	w.marker = page.NextMarker

	return page, nil
}
