package walker

import (
	"context"
	"errors"
	"iter"

	"github.com/3leaps/s3keeper/pkg/batch"
	"github.com/3leaps/s3keeper/pkg/provider"
)

// ErrStop may be returned by a WalkEntries or WalkVersions callback to end
// the walk early without error.
var ErrStop = errors.New("stop walk")

// Pager is the pull interface shared by BucketWalker and VersionWalker.
type Pager[P any] interface {
	HasMorePages() bool
	NextPage(ctx context.Context) (P, error)
}

var (
	_ Pager[*provider.PageResult]        = (*BucketWalker)(nil)
	_ Pager[*provider.VersionPageResult] = (*VersionWalker)(nil)
)

// PageFilter selects the entries of a page to deliver. Returning stop=true
// ends the walk after the selected entries are delivered.
type PageFilter func(page *provider.PageResult) (entries []provider.ObjectEntry, stop bool)

// AllEntries is the PageFilter that selects every entry.
func AllEntries(page *provider.PageResult) ([]provider.ObjectEntry, bool) {
	return page.Entries, false
}

// EntryFilter builds a PageFilter from a per-entry predicate.
func EntryFilter(keep func(*provider.ObjectEntry) bool) PageFilter {
	return func(page *provider.PageResult) ([]provider.ObjectEntry, bool) {
		out := make([]provider.ObjectEntry, 0, len(page.Entries))
		for i := range page.Entries {
			if keep(&page.Entries[i]) {
				out = append(out, page.Entries[i])
			}
		}
		return out, false
	}
}

// WalkEntries pulls pages and calls fn for each selected entry, in page
// order and then API order within a page.
//
// A nil filter selects every entry. If fn returns ErrStop the walk ends and
// WalkEntries returns nil; any other error is returned as is.
func WalkEntries(ctx context.Context, pager Pager[*provider.PageResult], filter PageFilter, fn func(provider.ObjectEntry) error) error {
	if filter == nil {
		filter = AllEntries
	}
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		entries, stop := filter(page)
		for _, e := range entries {
			if err := fn(e); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}
		if stop {
			return nil
		}
	}
	return nil
}

// Entries adapts WalkEntries to a range-over-func iterator. Breaking out of
// the loop abandons the walk without fetching another page. The returned
// function reports the walk error once the loop has ended.
func Entries(ctx context.Context, pager Pager[*provider.PageResult], filter PageFilter) (iter.Seq[provider.ObjectEntry], func() error) {
	var walkErr error
	seq := func(yield func(provider.ObjectEntry) bool) {
		walkErr = WalkEntries(ctx, pager, filter, func(e provider.ObjectEntry) error {
			if !yield(e) {
				return ErrStop
			}
			return nil
		})
	}
	return seq, func() error { return walkErr }
}

// CollectEntries accumulates selected entries in memory, keeping at most
// limit of them. A limit of zero or less collects everything. truncated
// reports that more entries matched than the limit allowed.
func CollectEntries(ctx context.Context, pager Pager[*provider.PageResult], filter PageFilter, limit int) (entries []provider.ObjectEntry, truncated bool, err error) {
	seq, walkErr := Entries(ctx, pager, filter)
	entries, truncated, err = batch.Collect(ctx, seq, limit)
	if err != nil {
		return entries, truncated, err
	}
	return entries, truncated, walkErr()
}

// WalkVersions pulls versions pages and calls fn for each version or delete
// marker, in page order and then API order within a page.
func WalkVersions(ctx context.Context, pager Pager[*provider.VersionPageResult], fn func(provider.VersionItem) error) error {
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if err := fn(item); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}
