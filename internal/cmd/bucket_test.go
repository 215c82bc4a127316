package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3keeper/pkg/output"
	"github.com/3leaps/s3keeper/pkg/provider"
)

// memBucket is an in-memory provider with the same paging rules as S3.
type memBucket struct {
	mu       sync.Mutex
	objects  map[string]memObject
	versions []provider.VersionItem

	// failKeys makes DeleteObjects report an error code for these keys.
	failKeys map[string]string

	batches [][]provider.ObjectIdentifier
	moves   []provider.MoveOperation
	lists   int
	conns   []connection
}

type memObject struct {
	body     []byte
	modified time.Time
	class    string
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string]memObject), failKeys: make(map[string]string)}
}

func (b *memBucket) put(key string, size int, modified time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memObject{body: bytes.Repeat([]byte("x"), size), modified: modified, class: "STANDARD"}
}

func (b *memBucket) putBody(key, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memObject{body: []byte(body), modified: time.Now(), class: "STANDARD"}
}

func (b *memBucket) addVersion(key, versionID string, latest bool, size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.versions = append(b.versions, provider.VersionItem{Version: &provider.ObjectEntry{
		Key:          key,
		Size:         size,
		LastModified: time.Now().Add(-time.Hour),
		Version:      &provider.VersionInfo{VersionID: versionID, IsLatest: latest},
	}})
}

func (b *memBucket) addDeleteMarker(key, versionID string, latest bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.versions = append(b.versions, provider.VersionItem{DeleteMarker: &provider.DeleteMarker{
		Key:       key,
		VersionID: versionID,
		IsLatest:  &latest,
	}})
}

func (b *memBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func etagOf(key string) string {
	return fmt.Sprintf("%q", "etag-"+key)
}

func (b *memBucket) entry(key, delimiter string) provider.ObjectEntry {
	o := b.objects[key]
	return provider.ObjectEntry{
		Key:          key,
		Delimiter:    delimiter,
		ETag:         etagOf(key),
		LastModified: o.modified,
		Size:         int64(len(o.body)),
		StorageClass: o.class,
	}
}

func (b *memBucket) ListPage(_ context.Context, opts provider.ListPageOptions) (*provider.PageResult, error) {
	keys := b.keys()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists++

	type item struct {
		name   string
		folder bool
	}
	var items []item
	seen := make(map[string]bool)
	for _, k := range keys {
		if !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		if opts.Delimiter != "" {
			if i := strings.Index(k[len(opts.Prefix):], opts.Delimiter); i >= 0 {
				p := k[:len(opts.Prefix)+i+len(opts.Delimiter)]
				if !seen[p] {
					seen[p] = true
					items = append(items, item{name: p, folder: true})
				}
				continue
			}
		}
		items = append(items, item{name: k})
	}

	// Tokens are the last name returned, so deletes between pages do not
	// shift the listing.
	start := 0
	if opts.ContinuationToken != "" {
		start = len(items)
		for i, it := range items {
			if it.name > opts.ContinuationToken {
				start = i
				break
			}
		}
	}
	end := min(start+provider.ClampPageSize(opts.MaxKeys, provider.DefaultPageSize), len(items))

	page := &provider.PageResult{Prefix: opts.Prefix, Delimiter: opts.Delimiter}
	for _, it := range items[start:end] {
		if it.folder {
			page.Folders = append(page.Folders, provider.FolderPrefix{Prefix: it.name, Delimiter: opts.Delimiter})
			continue
		}
		page.Entries = append(page.Entries, b.entry(it.name, opts.Delimiter))
	}
	if end < len(items) {
		page.IsTruncated = true
		page.NextContinuationToken = items[end-1].name
	}
	return page, nil
}

func (b *memBucket) ListVersionsPage(_ context.Context, opts provider.ListVersionsOptions) (*provider.VersionPageResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var items []provider.VersionItem
	for _, v := range b.versions {
		if strings.HasPrefix(v.Key(), opts.Prefix) {
			items = append(items, v)
		}
	}

	start := 0
	if opts.KeyMarker != "" {
		for i, v := range items {
			if v.Key() == opts.KeyMarker && v.ObjectIdentifier().VersionID == opts.VersionIDMarker {
				start = i + 1
				break
			}
		}
	}
	size := opts.MaxKeys
	if size <= 0 {
		size = provider.DefaultVersionPageSize
	}
	end := min(start+size, len(items))

	page := &provider.VersionPageResult{Prefix: opts.Prefix, Delimiter: opts.Delimiter, Items: items[start:end]}
	if end < len(items) {
		last := items[end-1]
		page.NextMarker = provider.NewVersionMarker(last.Key(), last.ObjectIdentifier().VersionID)
	}
	return page, nil
}

func (b *memBucket) DeleteObjects(_ context.Context, ids []provider.ObjectIdentifier, quiet bool) (*provider.DeleteResult, error) {
	if err := provider.CheckDeleteBatch(ids); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, append([]provider.ObjectIdentifier(nil), ids...))

	res := &provider.DeleteResult{}
	for _, id := range ids {
		if code, ok := b.failKeys[id.Key]; ok {
			res.Errors = append(res.Errors, provider.DeleteError{Key: id.Key, VersionID: id.VersionID, Code: code, Message: "refused"})
			continue
		}
		if id.VersionID == "" {
			delete(b.objects, id.Key)
		} else {
			kept := b.versions[:0]
			for _, v := range b.versions {
				if v.ObjectIdentifier() != id {
					kept = append(kept, v)
				}
			}
			b.versions = kept
		}
		if !quiet {
			res.Deleted = append(res.Deleted, id)
		}
	}
	return res, nil
}

func (b *memBucket) GetObject(_ context.Context, opts provider.GetObjectOptions) (*provider.GetObjectResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.objects[opts.Key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", opts.Key, provider.ErrNotFound)
	}
	etag := etagOf(opts.Key)
	if opts.IfNoneMatch != "" && opts.IfNoneMatch == etag {
		return nil, provider.ErrNotModified
	}
	if opts.IfMatch != "" && opts.IfMatch != etag {
		return nil, provider.ErrPreconditionFailed
	}
	if !opts.IfModifiedSince.IsZero() && !o.modified.After(opts.IfModifiedSince) {
		return nil, provider.ErrNotModified
	}

	body := o.body
	if opts.Range != "" {
		first, last, _ := strings.Cut(strings.TrimPrefix(opts.Range, "bytes="), "-")
		start, _ := strconv.Atoi(first)
		end := len(body) - 1
		if last != "" {
			end, _ = strconv.Atoi(last)
		}
		body = body[start : end+1]
	}
	return &provider.GetObjectResult{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		ETag:          etag,
		LastModified:  o.modified,
	}, nil
}

func (b *memBucket) Move(_ context.Context, op provider.MoveOperation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moves = append(b.moves, op)

	rename := func(from, to string) error {
		if _, exists := b.objects[to]; exists && !op.Overwrite {
			return fmt.Errorf("move %s: %w", to, provider.ErrPreconditionFailed)
		}
		b.objects[to] = b.objects[from]
		delete(b.objects, from)
		return nil
	}

	if op.Mode == provider.MoveExact {
		if _, ok := b.objects[op.Source]; !ok {
			return fmt.Errorf("move %s: %w", op.Source, provider.ErrNotFound)
		}
		return rename(op.Source, op.Destination)
	}
	for k := range b.objects {
		if strings.HasPrefix(k, op.Source) {
			if err := rename(k, op.Destination+strings.TrimPrefix(k, op.Source)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *memBucket) Close() error { return nil }

// useBucket routes every command to b and discards record output. The user
// config directory is isolated so a developer config cannot leak in.
func useBucket(t *testing.T, b *memBucket) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	prevFactory := providerFactory
	providerFactory = func(_ context.Context, conn connection) (provider.Provider, error) {
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		return b, nil
	}
	prevStdout := stdout
	stdout = io.Discard
	t.Cleanup(func() {
		providerFactory = prevFactory
		stdout = prevStdout
	})
}

// runCommand executes the root command with fresh flag state and returns
// everything written to stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	viper.Set("readonly", false)

	var buf bytes.Buffer
	prevStdout := stdout
	stdout = &buf
	rootCmd.SetOut(&buf)
	defer func() {
		stdout = prevStdout
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	rootCmd.SetArgs(args)
	rootCmd.SetContext(context.Background())
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of c and its subcommands to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, code, ee.Code, "error: %v", err)
}

// records decodes JSONL output, grouped by record type.
func records(t *testing.T, out string) map[string][]json.RawMessage {
	t.Helper()
	got := make(map[string][]json.RawMessage)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var rec output.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec), "line: %s", sc.Text())
		got[rec.Type] = append(got[rec.Type], rec.Data)
	}
	require.NoError(t, sc.Err())
	return got
}

func objectKeys(t *testing.T, out string) []string {
	t.Helper()
	var keys []string
	for _, raw := range records(t, out)[output.TypeObject] {
		var o output.ObjectRecord
		require.NoError(t, json.Unmarshal(raw, &o))
		keys = append(keys, o.Key)
	}
	return keys
}

func summaryOf(t *testing.T, out string) output.SummaryRecord {
	t.Helper()
	sums := records(t, out)[output.TypeSummary]
	require.Len(t, sums, 1)
	var s output.SummaryRecord
	require.NoError(t, json.Unmarshal(sums[0], &s))
	return s
}
