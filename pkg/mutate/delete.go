package mutate

import (
	"context"
	"errors"

	"github.com/3leaps/s3keeper/pkg/batch"
	"github.com/3leaps/s3keeper/pkg/provider"
	"github.com/3leaps/s3keeper/pkg/walker"
)

// MatchOptions bounds a streaming delete.
type MatchOptions struct {
	// Limit caps the number of matched objects. Zero means unlimited.
	Limit int

	// DryRun reports matches without deleting anything.
	DryRun bool

	// OnMatch is called for every matched object before it is batched.
	OnMatch func(provider.IdentifierProvider)
}

// Report is the outcome of a streaming delete.
type Report struct {
	Matched      int
	MatchedBytes int64

	// Truncated is true when Limit stopped the walk before it ended.
	Truncated bool

	// Results holds one entry per dispatched batch, in index order.
	// Empty on a dry run.
	Results []BatchResult
}

// Summary sums the batch results.
func (r *Report) Summary() Summary {
	return Summarize(r.Results)
}

// DeleteMatching walks pager, selects entries with filter and deletes them in
// batches as they fill. Batches run concurrently with the walk.
//
// A walk error stops submission; batches already submitted still complete and
// appear in the report alongside the returned error.
func DeleteMatching(ctx context.Context, pager walker.Pager[*provider.PageResult], filter walker.PageFilter, d *Dispatcher, opts MatchOptions) (*Report, error) {
	m := newMatcher[provider.ObjectEntry](d, opts)
	walkErr := walker.WalkEntries(ctx, pager, filter, func(e provider.ObjectEntry) error {
		return m.add(ctx, e, e.Size)
	})
	return m.finish(ctx, walkErr)
}

// DeleteVersions walks a versions listing and deletes every version or
// delete marker accepted by keep. A nil keep accepts everything.
func DeleteVersions(ctx context.Context, pager walker.Pager[*provider.VersionPageResult], keep func(provider.VersionItem) bool, d *Dispatcher, opts MatchOptions) (*Report, error) {
	m := newMatcher[provider.VersionItem](d, opts)
	walkErr := walker.WalkVersions(ctx, pager, func(item provider.VersionItem) error {
		if keep != nil && !keep(item) {
			return nil
		}
		var size int64
		if item.Version != nil {
			size = item.Version.Size
		}
		return m.add(ctx, item, size)
	})
	return m.finish(ctx, walkErr)
}

type matcher[T provider.IdentifierProvider] struct {
	opts   MatchOptions
	acc    *batch.Accumulator[provider.ObjectIdentifier]
	run    *run
	report Report
}

func newMatcher[T provider.IdentifierProvider](d *Dispatcher, opts MatchOptions) *matcher[T] {
	return &matcher[T]{
		opts: opts,
		acc:  batch.NewAccumulator[provider.ObjectIdentifier](d.BatchSize()),
		run:  d.start(),
	}
}

func (m *matcher[T]) add(ctx context.Context, item T, size int64) error {
	if m.opts.Limit > 0 && m.report.Matched >= m.opts.Limit {
		m.report.Truncated = true
		return walker.ErrStop
	}
	m.report.Matched++
	m.report.MatchedBytes += size
	if m.opts.OnMatch != nil {
		m.opts.OnMatch(item)
	}
	if m.opts.DryRun {
		return nil
	}
	if full, ok := m.acc.Add(item.ObjectIdentifier()); ok {
		m.run.submit(ctx, full)
	}
	return nil
}

func (m *matcher[T]) finish(ctx context.Context, walkErr error) (*Report, error) {
	if errors.Is(walkErr, walker.ErrMaxPages) {
		m.report.Truncated = true
		walkErr = nil
	}
	if walkErr == nil && !m.opts.DryRun {
		m.run.submit(ctx, m.acc.Flush())
	}
	m.report.Results = m.run.wait()
	return &m.report, walkErr
}

// UntilEmpty repeats a streaming delete until a round matches nothing.
//
// Each round gets a fresh pager from newPager since a listing is a snapshot.
// It also stops after a round that deleted nothing, to avoid spinning on
// objects the service refuses to delete, and after maxRounds rounds when
// maxRounds is positive. A dry run performs a single round.
func UntilEmpty(ctx context.Context, newPager func() walker.Pager[*provider.PageResult], filter walker.PageFilter, d *Dispatcher, opts MatchOptions, maxRounds int) ([]*Report, error) {
	var reports []*Report
	for round := 0; maxRounds <= 0 || round < maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := DeleteMatching(ctx, newPager(), filter, d, opts)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
		if opts.DryRun || report.Matched == 0 || report.Summary().Deleted == 0 {
			break
		}
	}
	return reports, nil
}
