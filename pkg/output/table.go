package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// TableWriter renders records as aligned columns for a terminal.
//
// Rows are buffered by a tabwriter and flushed on summary and Close.
// Progress records are dropped.
type TableWriter struct {
	mu     sync.Mutex
	tw     *tabwriter.Writer
	closed bool
}

// NewTableWriter creates a table writer on w.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
}

const tableTime = "2006-01-02 15:04:05"

func formatBytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func (t *TableWriter) row(ctx context.Context, cols ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrWriterClosed
	}
	if _, err := io.WriteString(t.tw, strings.Join(cols, "\t")+"\n"); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func (t *TableWriter) WriteObject(ctx context.Context, obj *ObjectRecord) error {
	return t.row(ctx, obj.LastModified.Format(tableTime), formatBytes(obj.Size), obj.StorageClass, obj.Key)
}

func (t *TableWriter) WriteVersion(ctx context.Context, v *VersionRecord) error {
	latest := ""
	if v.IsLatest {
		latest = "latest"
	}
	return t.row(ctx, v.LastModified.Format(tableTime), formatBytes(v.Size), v.VersionID, latest, v.Key)
}

func (t *TableWriter) WriteDeleteMarker(ctx context.Context, m *DeleteMarkerRecord) error {
	when := "-"
	if m.LastModified != nil {
		when = m.LastModified.Format(tableTime)
	}
	latest := ""
	if m.IsLatest != nil && *m.IsLatest {
		latest = "latest"
	}
	return t.row(ctx, when, "DELETED", m.VersionID, latest, m.Key)
}

func (t *TableWriter) WriteFolder(ctx context.Context, f *FolderRecord) error {
	return t.row(ctx, "", "PRE", "", f.Prefix)
}

func (t *TableWriter) WriteDeleteBatch(ctx context.Context, b *DeleteBatchRecord) error {
	status := fmt.Sprintf("batch %d: %d/%d deleted", b.Index, b.Deleted, b.Requested)
	if b.DryRun {
		status = fmt.Sprintf("batch %d: %d would be deleted", b.Index, b.Requested)
	}
	if b.Error != "" {
		status += ": " + b.Error
	}
	return t.row(ctx, status)
}

func (t *TableWriter) WriteMove(ctx context.Context, m *MoveRecord) error {
	status := "moved"
	if m.DryRun {
		status = "would move"
	}
	if m.Error != "" {
		status = "failed: " + m.Error
	}
	return t.row(ctx, m.Mode, m.Source, "->", m.Destination, status)
}

func (t *TableWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	target := err.Key
	if target == "" {
		target = err.Prefix
	}
	return t.row(ctx, "ERROR", err.Code, target, err.Message)
}

func (t *TableWriter) WriteProgress(context.Context, *ProgressRecord) error {
	return nil
}

func (t *TableWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	if err := t.flush(); err != nil {
		return err
	}
	lines := []string{
		fmt.Sprintf("matched %s objects (%s) in %s pages, %s",
			humanize.Comma(sum.ObjectsMatched), formatBytes(sum.BytesMatched),
			humanize.Comma(int64(sum.Pages)), sum.Duration.Round(time.Millisecond)),
	}
	if sum.Deleted > 0 || sum.Failed > 0 {
		lines = append(lines, fmt.Sprintf("deleted %s, failed %s", humanize.Comma(int64(sum.Deleted)), humanize.Comma(int64(sum.Failed))))
	}
	if sum.DryRun {
		lines = append(lines, "dry run: nothing was changed")
	}
	if sum.Truncated {
		lines = append(lines, "stopped at limit; more objects may match")
	}
	lines = append(lines, sum.Lines...)
	for _, l := range lines {
		if err := t.row(ctx, l); err != nil {
			return err
		}
	}
	return t.flush()
}

func (t *TableWriter) flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tw.Flush(); err != nil {
		return &WriteError{Op: "flush", Err: err}
	}
	return nil
}

// Close flushes buffered rows.
func (t *TableWriter) Close() error {
	if err := t.flush(); err != nil {
		return err
	}
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

var _ Writer = (*TableWriter)(nil)
