package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer emits command results.
//
// Implementations must be safe for concurrent use: delete batches report
// from dispatcher goroutines.
type Writer interface {
	WriteObject(ctx context.Context, obj *ObjectRecord) error
	WriteVersion(ctx context.Context, v *VersionRecord) error
	WriteDeleteMarker(ctx context.Context, m *DeleteMarkerRecord) error
	WriteFolder(ctx context.Context, f *FolderRecord) error
	WriteDeleteBatch(ctx context.Context, b *DeleteBatchRecord) error
	WriteMove(ctx context.Context, m *MoveRecord) error
	WriteError(ctx context.Context, err *ErrorRecord) error
	WriteProgress(ctx context.Context, prog *ProgressRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output. The underlying io.Writer is not
	// closed.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex so lines never interleave.
type JSONLWriter struct {
	w      io.Writer
	jobID  string
	bucket string
	now    func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewJSONLWriter creates a JSONL writer tagging every record with jobID and
// bucket.
func NewJSONLWriter(w io.Writer, jobID, bucket string) *JSONLWriter {
	return &JSONLWriter{
		w:      w,
		jobID:  jobID,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (jw *JSONLWriter) WriteObject(ctx context.Context, obj *ObjectRecord) error {
	return jw.writeRecord(ctx, TypeObject, obj)
}

func (jw *JSONLWriter) WriteVersion(ctx context.Context, v *VersionRecord) error {
	return jw.writeRecord(ctx, TypeVersion, v)
}

func (jw *JSONLWriter) WriteDeleteMarker(ctx context.Context, m *DeleteMarkerRecord) error {
	return jw.writeRecord(ctx, TypeDeleteMarker, m)
}

func (jw *JSONLWriter) WriteFolder(ctx context.Context, f *FolderRecord) error {
	return jw.writeRecord(ctx, TypeFolder, f)
}

func (jw *JSONLWriter) WriteDeleteBatch(ctx context.Context, b *DeleteBatchRecord) error {
	return jw.writeRecord(ctx, TypeDeleteBatch, b)
}

func (jw *JSONLWriter) WriteMove(ctx context.Context, m *MoveRecord) error {
	return jw.writeRecord(ctx, TypeMove, m)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

func (jw *JSONLWriter) WriteProgress(ctx context.Context, prog *ProgressRecord) error {
	return jw.writeRecord(ctx, TypeProgress, prog)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	recordBytes, err := json.Marshal(Record{
		Type:   recordType,
		TS:     jw.now(),
		JobID:  jw.jobID,
		Bucket: jw.bucket,
		Data:   dataBytes,
	})
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all of p, treating a zero-length write as io.ErrShortWrite.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
