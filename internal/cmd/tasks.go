package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/s3keeper/internal/observability"
	"github.com/3leaps/s3keeper/pkg/crawler"
	"github.com/3leaps/s3keeper/pkg/match"
	"github.com/3leaps/s3keeper/pkg/mutate"
	"github.com/3leaps/s3keeper/pkg/output"
	"github.com/3leaps/s3keeper/pkg/provider"
	"github.com/3leaps/s3keeper/pkg/stats"
	"github.com/3leaps/s3keeper/pkg/walker"
)

// target is the key space one command or job task operates on.
type target struct {
	Prefix    string
	Delimiter string
	Recursive bool

	// Limit caps matched objects. Zero means unlimited.
	Limit int

	filter *match.CompositeFilter
}

// Match reports whether e is selected. A nil filter selects everything.
func (t target) Match(e *provider.ObjectEntry) bool {
	return t.filter.Match(e)
}

// settings are the listing and delete tunables of one run.
type settings struct {
	PageSize        int
	VersionPageSize int
	RateLimit       float64
	MaxPages        int
	Concurrency     int
	MaxBuffer       int

	BatchSize   int
	Parallelism int
	Quiet       bool

	// limiter is shared by every walk of the run so rounds and tasks draw
	// from one request budget.
	limiter *rate.Limiter
}

func settingsFromConfig() settings {
	cfg := appConfig
	return settings{
		PageSize:        cfg.Listing.PageSize,
		VersionPageSize: cfg.Listing.VersionPageSize,
		RateLimit:       cfg.Listing.RateLimit,
		MaxPages:        cfg.Listing.MaxPages,
		Concurrency:     cfg.Listing.Concurrency,
		MaxBuffer:       cfg.Listing.MaxBuffer,
		BatchSize:       cfg.Delete.BatchSize,
		Parallelism:     cfg.Delete.Parallelism,
		Quiet:           cfg.Delete.Quiet,
	}.withLimiter()
}

// withLimiter builds the shared request limiter from RateLimit.
func (s settings) withLimiter() settings {
	s.limiter = nil
	if s.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(s.RateLimit), 1)
	}
	return s
}

func (s settings) walkOptions(t target) walker.Options {
	return walker.Options{
		StartPrefix: t.Prefix,
		Delimiter:   t.Delimiter,
		PageSize:    s.PageSize,
		Recurse:     t.Recursive && t.Delimiter != "",
		RateLimit:   s.RateLimit,
		Limiter:     s.limiter,
		MaxPages:    s.MaxPages,
	}
}

func (s settings) versionOptions(t target) walker.VersionOptions {
	opts := walker.VersionOptions{
		Prefix:    t.Prefix,
		Delimiter: t.Delimiter,
		PageSize:  s.VersionPageSize,
		RateLimit: s.RateLimit,
		Limiter:   s.limiter,
		MaxPages:  s.MaxPages,
	}
	// Version listings do not descend folders; a flat listing covers them.
	if t.Recursive {
		opts.Delimiter = ""
	}
	return opts
}

// scanOptions tunes scanObjects.
type scanOptions struct {
	Folders     bool
	SummaryOnly bool

	// Cutoff splits the statistics into old and recent. Zero disables it.
	Cutoff time.Time
}

// scanObjects lists t through the crawler pipeline and writes object,
// folder, progress and summary records.
func scanObjects(ctx context.Context, lister provider.Lister, w output.Writer, t target, s settings, opts scanOptions) (*crawler.Summary, *stats.Totals, error) {
	cfg := crawler.DefaultConfig()
	if s.Concurrency > 0 {
		cfg.Concurrency = s.Concurrency
	}
	cfg.Walk = s.walkOptions(t)
	cfg.SplitRoot = true
	cfg.Limit = int64(t.Limit)
	cfg.Folders = opts.Folders
	cfg.SummaryOnly = opts.SummaryOnly

	totals := stats.New(opts.Cutoff)
	c := crawler.New(lister, w, cfg).WithStats(totals)
	if t.filter != nil {
		c = c.WithFilter(t.filter)
	}

	observability.CLILogger.Debug("Starting scan",
		zap.String("prefix", t.Prefix),
		zap.Bool("recursive", cfg.Walk.Recurse),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Int64("limit", cfg.Limit))

	summary, err := c.Run(ctx)
	return summary, totals, err
}

// deleteOptions tunes deleteObjects and purgeVersions.
type deleteOptions struct {
	DryRun bool

	// UntilEmpty re-walks and deletes until a round matches nothing.
	UntilEmpty bool
	MaxRounds  int

	// NoncurrentOnly keeps the latest version of every key.
	NoncurrentOnly bool

	// DeleteMarkersOnly removes delete markers and leaves stored versions.
	DeleteMarkersOnly bool
}

// deleteRun collects the outcome of one delete command across rounds.
type deleteRun struct {
	reports []*mutate.Report
	pagers  []interface{ Pages() int }
	started time.Time
}

func (r *deleteRun) summary(dryRun bool) (*output.SummaryRecord, mutate.Summary) {
	var results []mutate.BatchResult
	rec := &output.SummaryRecord{DryRun: dryRun, Rounds: len(r.reports)}
	for _, rep := range r.reports {
		if rep == nil {
			continue
		}
		rec.ObjectsMatched += int64(rep.Matched)
		rec.BytesMatched += rep.MatchedBytes
		rec.Truncated = rec.Truncated || rep.Truncated
		results = append(results, rep.Results...)
	}
	for _, p := range r.pagers {
		rec.Pages += p.Pages()
	}

	sum := mutate.Summarize(results)
	rec.Deleted = sum.Deleted
	rec.Failed = sum.Failed
	for _, res := range results {
		if res.Err != nil || len(res.Errors) > 0 {
			rec.Errors++
		}
	}
	rec.Duration = time.Since(r.started)
	rec.DurationHuman = rec.Duration.Round(time.Millisecond).String()

	verb := "deleted"
	if dryRun {
		verb = "would delete"
	}
	rec.Lines = []string{fmt.Sprintf("%s %s objects (%s)", verb, humanize.Comma(rec.ObjectsMatched), humanize.IBytes(uint64(rec.BytesMatched)))}
	if sum.Failed > 0 {
		rec.Lines = append(rec.Lines, "failed: "+humanize.Comma(int64(sum.Failed)))
	}
	return rec, sum
}

// newDispatcher builds a dispatcher that reports every batch to w.
func newDispatcher(ctx context.Context, deleter provider.BulkDeleter, w output.Writer, s settings) *mutate.Dispatcher {
	return mutate.NewDispatcher(deleter, mutate.Options{
		BatchSize:   s.BatchSize,
		Parallelism: s.Parallelism,
		Quiet:       s.Quiet,
		OnBatch: func(res mutate.BatchResult) {
			if err := w.WriteDeleteBatch(ctx, batchRecord(res)); err != nil {
				observability.CLILogger.Warn("Failed to write batch record", zap.Int("batch", res.Index), zap.Error(err))
			}
			if res.Err != nil {
				observability.CLILogger.Error("Delete batch failed", zap.Int("batch", res.Index), zap.Error(res.Err))
			}
		},
	})
}

func batchRecord(res mutate.BatchResult) *output.DeleteBatchRecord {
	rec := &output.DeleteBatchRecord{
		Index:      res.Index,
		Requested:  res.Requested,
		Deleted:    res.DeletedCount(),
		Failed:     res.FailedCount(),
		DurationMS: res.Duration.Milliseconds(),
	}
	for _, e := range res.Errors {
		rec.FailedKeys = append(rec.FailedKeys, e.Key)
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// onMatch writes the records of a dry run.
func onMatch(ctx context.Context, w output.Writer) func(provider.IdentifierProvider) {
	return func(item provider.IdentifierProvider) {
		var err error
		switch v := item.(type) {
		case provider.ObjectEntry:
			err = w.WriteObject(ctx, output.NewObjectRecord(&v))
		case provider.VersionItem:
			err = output.WriteVersionItem(ctx, w, v)
		}
		if err != nil {
			observability.CLILogger.Warn("Failed to write match record", zap.Error(err))
		}
	}
}

// deleteObjects streams the objects selected by t into delete batches.
func deleteObjects(ctx context.Context, prov provider.Provider, w output.Writer, t target, s settings, opts deleteOptions) (mutate.Summary, error) {
	run := &deleteRun{started: time.Now()}
	d := newDispatcher(ctx, prov, w, s)
	filter := walker.EntryFilter(t.Match)

	mo := mutate.MatchOptions{Limit: t.Limit, DryRun: opts.DryRun}
	if opts.DryRun {
		mo.OnMatch = onMatch(ctx, w)
	}

	newPager := func() walker.Pager[*provider.PageResult] {
		bw := walker.NewBucketWalker(prov, s.walkOptions(t))
		run.pagers = append(run.pagers, bw)
		return bw
	}

	var err error
	if opts.UntilEmpty {
		run.reports, err = mutate.UntilEmpty(ctx, newPager, filter, d, mo, opts.MaxRounds)
	} else {
		var rep *mutate.Report
		rep, err = mutate.DeleteMatching(ctx, newPager(), filter, d, mo)
		run.reports = []*mutate.Report{rep}
	}

	return finishDelete(ctx, w, run, opts.DryRun, err)
}

// purgeVersions deletes stored versions and delete markers selected by t.
func purgeVersions(ctx context.Context, prov provider.Provider, w output.Writer, t target, s settings, opts deleteOptions) (mutate.Summary, error) {
	run := &deleteRun{started: time.Now()}
	d := newDispatcher(ctx, prov, w, s)

	mo := mutate.MatchOptions{Limit: t.Limit, DryRun: opts.DryRun}
	if opts.DryRun {
		mo.OnMatch = onMatch(ctx, w)
	}

	vw := walker.NewVersionWalker(prov, s.versionOptions(t))
	run.pagers = append(run.pagers, vw)
	keep := func(item provider.VersionItem) bool {
		return selectVersion(item, opts) && match.MatchVersion(t.filter, item)
	}

	rep, err := mutate.DeleteVersions(ctx, vw, keep, d, mo)
	run.reports = []*mutate.Report{rep}
	return finishDelete(ctx, w, run, opts.DryRun, err)
}

func finishDelete(ctx context.Context, w output.Writer, run *deleteRun, dryRun bool, err error) (mutate.Summary, error) {
	rec, sum := run.summary(dryRun)
	if err != nil {
		return sum, err
	}
	if werr := w.WriteSummary(ctx, rec); werr != nil {
		return sum, werr
	}
	observability.CLILogger.Info("Delete finished",
		zap.Int64("matched", rec.ObjectsMatched),
		zap.Int("deleted", sum.Deleted),
		zap.Int("failed", sum.Failed),
		zap.Int("rounds", rec.Rounds),
		zap.Bool("dry_run", dryRun))
	return sum, nil
}

// selectVersion applies the noncurrent and delete-marker switches.
func selectVersion(item provider.VersionItem, opts deleteOptions) bool {
	if opts.DeleteMarkersOnly && !item.IsDeleteMarker() {
		return false
	}
	if opts.NoncurrentOnly && isLatest(item) {
		return false
	}
	return true
}

func isLatest(item provider.VersionItem) bool {
	if m := item.DeleteMarker; m != nil {
		return m.IsLatest != nil && *m.IsLatest
	}
	return item.Version != nil && item.Version.Version != nil && item.Version.Version.IsLatest
}

// listVersions writes the versions and delete markers selected by t.
func listVersions(ctx context.Context, prov provider.VersionLister, w output.Writer, t target, s settings, opts deleteOptions) (*stats.Totals, error) {
	started := time.Now()
	totals := stats.New(time.Time{})
	vw := walker.NewVersionWalker(prov, s.versionOptions(t))

	var matched int64
	truncated := false
	err := walker.WalkVersions(ctx, vw, func(item provider.VersionItem) error {
		if !selectVersion(item, opts) || !match.MatchVersion(t.filter, item) {
			return nil
		}
		if t.Limit > 0 && matched >= int64(t.Limit) {
			truncated = true
			return walker.ErrStop
		}
		matched++
		totals.AddVersion(item)
		return output.WriteVersionItem(ctx, w, item)
	})
	if errors.Is(err, walker.ErrMaxPages) {
		truncated, err = true, nil
	}
	if err != nil {
		return totals, err
	}

	d := time.Since(started)
	return totals, w.WriteSummary(ctx, &output.SummaryRecord{
		ObjectsFound:   matched,
		ObjectsMatched: matched,
		BytesMatched:   totals.All.Bytes,
		Pages:          vw.Pages(),
		Truncated:      truncated,
		Duration:       d,
		DurationHuman:  d.Round(time.Millisecond).String(),
		Lines:          totals.Lines(),
	})
}

// moveObjects runs renames and writes one record per operation. It returns
// the number of failed operations.
func moveObjects(ctx context.Context, mover provider.Mover, w output.Writer, ops []provider.MoveOperation, parallelism int, dryRun bool) (int, error) {
	if dryRun {
		for _, op := range ops {
			if err := w.WriteMove(ctx, moveRecord(op, nil, true)); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}

	results, joined := mutate.MoveAll(ctx, mover, ops, parallelism)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			observability.CLILogger.Error("Move failed",
				zap.String("source", r.Op.Source),
				zap.String("destination", r.Op.Destination),
				zap.Error(r.Err))
		}
		if err := w.WriteMove(ctx, moveRecord(r.Op, r.Err, false)); err != nil {
			return failed, err
		}
	}
	if errors.Is(joined, context.Canceled) {
		return failed, joined
	}
	return failed, nil
}

func moveRecord(op provider.MoveOperation, err error, dryRun bool) *output.MoveRecord {
	rec := &output.MoveRecord{
		Source:      op.Source,
		Destination: op.Destination,
		Mode:        op.Mode.String(),
		Overwrite:   op.Overwrite,
		DryRun:      dryRun,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// planMoves expands a source selection into rename operations. A glob
// source renames each matching key under dest; a prefix source renames the
// whole prefix in one request. truncated reports that the glob matched
// more keys than s.MaxBuffer allows.
func planMoves(ctx context.Context, lister provider.Lister, src target, srcKey, dest string, prefixMode, glob, overwrite bool, s settings) (ops []provider.MoveOperation, truncated bool, err error) {
	if !glob {
		mode := provider.MoveExact
		if prefixMode {
			mode = provider.MovePrefix
		}
		return []provider.MoveOperation{{Mode: mode, Source: srcKey, Destination: dest, Overwrite: overwrite}}, false, nil
	}

	entries, truncated, err := walker.CollectEntries(ctx, walker.NewBucketWalker(lister, s.walkOptions(src)), walker.EntryFilter(src.Match), s.MaxBuffer)
	if errors.Is(err, walker.ErrMaxPages) {
		truncated = true
	} else if err != nil {
		return nil, false, err
	}
	ops = make([]provider.MoveOperation, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, provider.MoveOperation{
			Mode:        provider.MoveExact,
			Source:      e.Key,
			Destination: dest + strings.TrimPrefix(e.Key, srcKey),
			Overwrite:   overwrite,
		})
	}
	return ops, truncated, nil
}
