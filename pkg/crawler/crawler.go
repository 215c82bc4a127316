// Package crawler implements a bounded streaming pipeline for scanning a
// bucket.
//
// The crawler coordinates three stages:
//   - Lister: walks each root prefix with a walker.BucketWalker (parallelized by prefix)
//   - Matcher: filters entries, counts statistics, enforces the object limit
//   - Writer: emits matched objects and folders as output records
//
// Bounded channels between stages provide backpressure to prevent memory
// exhaustion on large buckets.
package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/3leaps/s3keeper/pkg/match"
	"github.com/3leaps/s3keeper/pkg/output"
	"github.com/3leaps/s3keeper/pkg/provider"
	"github.com/3leaps/s3keeper/pkg/stats"
	"github.com/3leaps/s3keeper/pkg/walker"
)

// Config configures crawler behavior.
type Config struct {
	// Concurrency is the number of root prefixes walked in parallel.
	// Default: 4
	Concurrency int

	// ChannelBuffer is the size of bounded channels between pipeline stages,
	// in entries.
	// Default: 1000
	ChannelBuffer int

	// ProgressEvery emits a progress record every N pages.
	// Default: 10
	ProgressEvery int

	// Walk is the template for every prefix walk. StartPrefix is replaced by
	// each root prefix. RateLimit and MaxPages are shared across all walks.
	Walk walker.Options

	// SplitRoot fans a recursive, delimited scan out over the folders of
	// Walk.StartPrefix. The start prefix is listed once without recursion and
	// each folder it contains becomes a root prefix. Ignored when WithPrefixes
	// sets the roots explicitly.
	SplitRoot bool

	// Limit stops the scan after this many matched objects (0 = unlimited).
	Limit int64

	// Folders emits a folder record for every common prefix seen.
	Folders bool

	// SummaryOnly suppresses object and folder records. Statistics and the
	// summary record are still produced.
	SummaryOnly bool
}

// DefaultConfig returns the default crawler configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   4,
		ChannelBuffer: 1000,
		ProgressEvery: 10,
		Walk:          walker.Options{Delimiter: "/"},
	}
}

// Summary contains aggregate statistics from a completed scan.
type Summary struct {
	Pages int64

	// ObjectsListed is the total number of objects seen from the provider.
	ObjectsListed int64

	// ObjectsMatched is the number of objects that passed the filter.
	ObjectsMatched int64

	// BytesMatched is the cumulative size of matched objects in bytes.
	BytesMatched int64

	Folders int64

	// Truncated is true when Limit or Walk.MaxPages ended the scan early.
	Truncated bool

	Duration time.Duration

	// Errors is the count of non-fatal errors encountered.
	Errors int64

	// Prefixes lists the root prefixes that were walked.
	Prefixes []string
}

// Crawler executes a scan against a bucket.
//
// Crawler is safe for single use only. Create a new Crawler for each scan.
type Crawler struct {
	lister provider.Lister
	filter match.Filter
	writer output.Writer
	config Config

	// totalsMu guards totals; matcher workers add to it concurrently.
	totalsMu sync.Mutex
	totals   *stats.Totals

	prefixes []string
	limiter  *rate.Limiter

	// split holds the root prefixes found by SplitRoot. Written by the lister
	// stage before the pipeline drains.
	split []string

	// reserved counts pages claimed against Walk.MaxPages.
	reserved atomic.Int64

	pages          atomic.Int64
	objectsListed  atomic.Int64
	objectsMatched atomic.Int64
	bytesMatched   atomic.Int64
	folders        atomic.Int64
	errorCount     atomic.Int64
	truncated      atomic.Bool
}

// New creates a new crawler.
//
// Use WithFilter, WithPrefixes and WithStats to configure it further.
func New(l provider.Lister, w output.Writer, cfg Config) *Crawler {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = def.ChannelBuffer
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = def.ProgressEvery
	}

	c := &Crawler{
		lister: l,
		writer: w,
		config: cfg,
	}
	switch {
	case cfg.Walk.Limiter != nil:
		c.limiter = cfg.Walk.Limiter
	case cfg.Walk.RateLimit > 0:
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Walk.RateLimit), 1)
	}
	return c
}

// WithFilter sets the entry filter. A nil filter matches everything.
func (c *Crawler) WithFilter(f match.Filter) *Crawler {
	c.filter = f
	return c
}

// WithPrefixes sets the root prefixes to walk. Defaults to Walk.StartPrefix.
func (c *Crawler) WithPrefixes(prefixes []string) *Crawler {
	c.prefixes = prefixes
	return c
}

// WithStats aggregates matched entries and folders into t. The totals are
// only updated from the matcher stage and are complete once Run returns.
func (c *Crawler) WithStats(t *stats.Totals) *Crawler {
	c.totals = t
	return c
}

// Run executes the scan and returns summary statistics.
//
// Non-fatal errors (access denied or throttling on one prefix) are written
// as error records and counted. Bucket and credential errors are fatal.
// Cancelling ctx stops the scan and returns a partial summary with the
// context error.
func (c *Crawler) Run(ctx context.Context) (*Summary, error) {
	startTime := time.Now()

	prefixes := c.prefixes
	if len(prefixes) == 0 {
		prefixes = []string{c.config.Walk.StartPrefix}
	}

	err := c.runPipeline(ctx, prefixes)
	if c.splits() {
		prefixes = append(prefixes, c.split...)
	}
	if err != nil {
		return c.buildSummary(prefixes, time.Since(startTime)), err
	}

	summary := c.buildSummary(prefixes, time.Since(startTime))
	if err := c.writeSummary(ctx, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (c *Crawler) buildSummary(prefixes []string, duration time.Duration) *Summary {
	return &Summary{
		Pages:          c.pages.Load(),
		ObjectsListed:  c.objectsListed.Load(),
		ObjectsMatched: c.objectsMatched.Load(),
		BytesMatched:   c.bytesMatched.Load(),
		Folders:        c.folders.Load(),
		Truncated:      c.truncated.Load(),
		Duration:       duration,
		Errors:         c.errorCount.Load(),
		Prefixes:       prefixes,
	}
}

func (c *Crawler) writeProgress(ctx context.Context, phase, prefix string) error {
	return c.writer.WriteProgress(ctx, &output.ProgressRecord{
		Phase:          phase,
		Pages:          int(c.pages.Load()),
		ObjectsFound:   c.objectsListed.Load(),
		ObjectsMatched: c.objectsMatched.Load(),
		BytesMatched:   c.bytesMatched.Load(),
		Prefix:         prefix,
	})
}

func (c *Crawler) writeSummary(ctx context.Context, summary *Summary) error {
	sum := &output.SummaryRecord{
		ObjectsFound:   summary.ObjectsListed,
		ObjectsMatched: summary.ObjectsMatched,
		BytesMatched:   summary.BytesMatched,
		Pages:          int(summary.Pages),
		Truncated:      summary.Truncated,
		Duration:       summary.Duration,
		DurationHuman:  summary.Duration.Round(time.Millisecond).String(),
		Errors:         summary.Errors,
	}
	if c.totals != nil {
		sum.Lines = c.totals.Lines()
	}
	return c.writer.WriteSummary(ctx, sum)
}

// writeError emits an error record and increments the error counter.
func (c *Crawler) writeError(ctx context.Context, err error, prefix string) {
	c.errorCount.Add(1)
	// Best effort: a failed error record must not fail the scan.
	_ = c.writer.WriteError(ctx, output.NewErrorRecord(err, "", prefix))
}

// pageItem is one listed page flowing from a lister to the matcher.
type pageItem struct {
	page   *provider.PageResult
	prefix string
}

// item is one matched entry, folder or end-of-page marker flowing to the
// writer.
type item struct {
	entry   *provider.ObjectEntry
	folder  *provider.FolderPrefix
	prefix  string
	pageEnd bool
}

// runPipeline orchestrates the lister → matcher → writer pipeline.
func (c *Crawler) runPipeline(ctx context.Context, prefixes []string) error {
	pipeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Listers stop early on limit without cancelling the writer.
	listCtx, stopListing := context.WithCancel(pipeCtx)
	defer stopListing()

	pageCh := make(chan pageItem, c.config.Concurrency)
	matchCh := make(chan item, c.config.ChannelBuffer)
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
		cancel()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(pageCh)
		if err := c.runListers(listCtx, prefixes, pageCh); err != nil {
			fail(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(matchCh)
		c.runMatcher(pipeCtx, pageCh, matchCh, stopListing)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.runWriter(pipeCtx, matchCh); err != nil {
			fail(err)
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

// splits reports whether the scan seeds its root prefixes from the folders
// of the start prefix.
func (c *Crawler) splits() bool {
	return c.config.SplitRoot && len(c.prefixes) == 0 &&
		c.config.Walk.Recurse && c.config.Walk.Delimiter != ""
}

// runListers walks every root prefix with bounded concurrency. With
// SplitRoot the start prefix is listed first and its folders become the
// roots.
func (c *Crawler) runListers(ctx context.Context, prefixes []string, out chan<- pageItem) error {
	if c.splits() {
		roots, err := c.walkRoot(ctx, prefixes[0], out)
		if err != nil {
			return err
		}
		c.split = roots
		prefixes = roots
	}

	sem := make(chan struct{}, c.config.Concurrency)

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, prefix := range prefixes {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := c.walkPrefix(ctx, p, c.config.Walk, out, nil); err != nil {
				errOnce.Do(func() {
					firstErr = err
				})
			}
		}(prefix)
	}

	wg.Wait()
	if firstErr == nil && ctx.Err() != nil && !c.truncated.Load() {
		return ctx.Err()
	}
	return firstErr
}

// walkRoot lists prefix one level deep, sending its pages downstream, and
// returns the folders it contains in listing order.
func (c *Crawler) walkRoot(ctx context.Context, prefix string, out chan<- pageItem) ([]string, error) {
	opts := c.config.Walk
	opts.Recurse = false

	var roots []string
	seen := make(map[string]struct{})
	err := c.walkPrefix(ctx, prefix, opts, out, func(page *provider.PageResult) {
		for _, f := range page.Folders {
			if f.Prefix == prefix {
				continue
			}
			if _, ok := seen[f.Prefix]; ok {
				continue
			}
			seen[f.Prefix] = struct{}{}
			roots = append(roots, f.Prefix)
		}
	})
	return roots, err
}

// reservePage claims one page of the shared Walk.MaxPages budget. It
// returns false, marking the scan truncated, once the budget is spent.
func (c *Crawler) reservePage() bool {
	limit := c.config.Walk.MaxPages
	if limit <= 0 {
		return true
	}
	if c.reserved.Add(1) > int64(limit) {
		c.truncated.Store(true)
		return false
	}
	return true
}

// walkPrefix walks one prefix with opts and sends its pages downstream.
// onPage, when set, sees every page before it is sent.
func (c *Crawler) walkPrefix(ctx context.Context, prefix string, opts walker.Options, out chan<- pageItem, onPage func(*provider.PageResult)) error {
	opts.StartPrefix = prefix
	opts.Limiter = c.limiter
	opts.MaxPages = 0

	w := walker.NewBucketWalker(c.lister, opts)
	for w.HasMorePages() {
		if !c.reservePage() {
			return nil
		}
		page, err := w.NextPage(ctx)
		if err != nil {
			return c.classify(ctx, prefix, err)
		}
		c.pages.Add(1)
		c.objectsListed.Add(int64(len(page.Entries)))
		if onPage != nil {
			onPage(page)
		}

		select {
		case <-ctx.Done():
			return c.classify(ctx, prefix, ctx.Err())
		case out <- pageItem{page: page, prefix: prefix}:
		}
	}
	return nil
}

// classify decides whether a walk error is fatal. Non-fatal errors are
// recorded and the prefix is skipped.
func (c *Crawler) classify(ctx context.Context, prefix string, err error) error {
	switch {
	case errors.Is(err, context.Canceled) && c.truncated.Load():
		return nil
	case provider.IsBucketNotFound(err), provider.IsInvalidCredentials(err):
		return err
	case provider.IsAccessDenied(err), provider.IsThrottled(err),
		provider.IsNotFound(err), provider.IsProviderUnavailable(err):
		c.writeError(ctx, err, prefix)
		return nil
	default:
		return err
	}
}

// runMatcher filters entries and forwards matches to the writer channel.
// It is the only stage that touches the stats totals.
func (c *Crawler) runMatcher(ctx context.Context, in <-chan pageItem, out chan<- item, stopListing context.CancelFunc) {
	send := func(it item) bool {
		select {
		case <-ctx.Done():
			return false
		case out <- it:
			return true
		}
	}

	for {
		var pi pageItem
		var ok bool
		select {
		case <-ctx.Done():
			return
		case pi, ok = <-in:
			if !ok {
				return
			}
		}

		if c.totals != nil {
			c.totalsMu.Lock()
			c.totals.Folders += int64(len(pi.page.Folders))
			c.totalsMu.Unlock()
		}
		c.folders.Add(int64(len(pi.page.Folders)))
		if c.config.Folders && !c.config.SummaryOnly {
			for i := range pi.page.Folders {
				if !send(item{folder: &pi.page.Folders[i], prefix: pi.prefix}) {
					return
				}
			}
		}

		for i := range pi.page.Entries {
			e := &pi.page.Entries[i]
			if c.filter != nil && !c.filter.Match(e) {
				continue
			}
			if c.config.Limit > 0 && c.objectsMatched.Load() >= c.config.Limit {
				c.truncated.Store(true)
				stopListing()
				return
			}

			c.objectsMatched.Add(1)
			c.bytesMatched.Add(e.Size)
			if c.totals != nil {
				c.totalsMu.Lock()
				c.totals.Add(e)
				c.totalsMu.Unlock()
			}
			if !c.config.SummaryOnly && !send(item{entry: e, prefix: pi.prefix}) {
				return
			}
		}

		if !send(item{pageEnd: true, prefix: pi.prefix}) {
			return
		}
	}
}

// runWriter writes matched entries and periodic progress records.
func (c *Crawler) runWriter(ctx context.Context, in <-chan item) error {
	var pages int
	var lastPrefix string

	for {
		select {
		case <-ctx.Done():
			_ = c.writeProgress(ctx, output.PhaseComplete, lastPrefix)
			return ctx.Err()
		case it, ok := <-in:
			if !ok {
				return c.writeProgress(ctx, output.PhaseComplete, lastPrefix)
			}
			lastPrefix = it.prefix

			switch {
			case it.entry != nil:
				if err := c.writer.WriteObject(ctx, output.NewObjectRecord(it.entry)); err != nil {
					return err
				}
			case it.folder != nil:
				if err := c.writer.WriteFolder(ctx, &output.FolderRecord{Prefix: it.folder.Prefix, Name: it.folder.Name()}); err != nil {
					return err
				}
			case it.pageEnd:
				pages++
				if pages%c.config.ProgressEvery == 0 {
					if err := c.writeProgress(ctx, output.PhaseListing, it.prefix); err != nil {
						return err
					}
				}
			}
		}
	}
}
