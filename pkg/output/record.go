// Package output writes listing and mutation results.
//
// JSONL output is a stream of typed record envelopes. Each line is a
// self-contained JSON object that can be parsed independently. Table output
// renders the same records for a terminal.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/s3keeper/pkg/provider"
)

// Record type constants follow the pattern s3keeper.<type>.v<version>.
const (
	TypeObject       = "s3keeper.object.v1"
	TypeVersion      = "s3keeper.version.v1"
	TypeDeleteMarker = "s3keeper.delete_marker.v1"
	TypeFolder       = "s3keeper.folder.v1"
	TypeDeleteBatch  = "s3keeper.delete_batch.v1"
	TypeMove         = "s3keeper.move.v1"
	TypeError        = "s3keeper.error.v1"
	TypeProgress     = "s3keeper.progress.v1"
	TypeSummary      = "s3keeper.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "s3keeper.object.v1").
	Type string `json:"type"`

	// TS is the time the record was written.
	TS time.Time `json:"ts"`

	// JobID correlates all records of one command run.
	JobID string `json:"job_id"`

	// Bucket is the bucket the command operates on.
	Bucket string `json:"bucket"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ObjectRecord is one object from a listing.
type ObjectRecord struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
	StorageClass string    `json:"storage_class,omitempty"`
}

// NewObjectRecord converts a listing entry.
func NewObjectRecord(e *provider.ObjectEntry) *ObjectRecord {
	return &ObjectRecord{
		Key:          e.Key,
		Name:         e.Name(),
		Size:         e.Size,
		ETag:         e.ETag,
		LastModified: e.LastModified,
		StorageClass: e.StorageClass,
	}
}

// VersionRecord is one stored version from a versions listing.
type VersionRecord struct {
	ObjectRecord
	VersionID string `json:"version_id"`
	IsLatest  bool   `json:"is_latest"`
}

// DeleteMarkerRecord is one delete marker from a versions listing.
type DeleteMarkerRecord struct {
	Key          string     `json:"key"`
	VersionID    string     `json:"version_id,omitempty"`
	IsLatest     *bool      `json:"is_latest,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Owner        string     `json:"owner,omitempty"`
}

// FolderRecord is one common prefix from a delimited listing.
type FolderRecord struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

// DeleteBatchRecord reports one multi-delete request.
type DeleteBatchRecord struct {
	Index      int      `json:"index"`
	Requested  int      `json:"requested"`
	Deleted    int      `json:"deleted"`
	Failed     int      `json:"failed"`
	FailedKeys []string `json:"failed_keys,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	DryRun     bool     `json:"dry_run,omitempty"`
}

// MoveRecord reports one rename.
type MoveRecord struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Mode        string `json:"mode"`
	Overwrite   bool   `json:"overwrite"`
	Error       string `json:"error,omitempty"`
	DryRun      bool   `json:"dry_run,omitempty"`
}

// ErrorRecord reports a failure without ending the output stream.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Key is the object key related to this error, if applicable.
	Key string `json:"key,omitempty"`

	// Prefix is the prefix being listed when the error occurred.
	Prefix string `json:"prefix,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeAccessDenied = "ACCESS_DENIED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeThrottled    = "THROTTLED"
	ErrCodeUnavailable  = "UNAVAILABLE"
	ErrCodeTransport    = "TRANSPORT"
	ErrCodeInternal     = "INTERNAL"
)

// ErrorCode maps an error to an ErrorRecord code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case provider.IsAuthFailure(err):
		return ErrCodeAccessDenied
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return ErrCodeNotFound
	case provider.IsThrottled(err):
		return ErrCodeThrottled
	case provider.IsProviderUnavailable(err):
		return ErrCodeUnavailable
	case provider.IsTransport(err):
		return ErrCodeTransport
	default:
		return ErrCodeInternal
	}
}

// NewErrorRecord builds an error record for err.
func NewErrorRecord(err error, key, prefix string) *ErrorRecord {
	return &ErrorRecord{Code: ErrorCode(err), Message: err.Error(), Key: key, Prefix: prefix}
}

// ProgressRecord is a periodic update during long walks.
type ProgressRecord struct {
	Phase          string `json:"phase"`
	Pages          int    `json:"pages"`
	ObjectsFound   int64  `json:"objects_found"`
	ObjectsMatched int64  `json:"objects_matched"`
	BytesMatched   int64  `json:"bytes_matched"`
	Prefix         string `json:"prefix,omitempty"`
}

// Progress phase constants.
const (
	PhaseListing  = "listing"
	PhaseDeleting = "deleting"
	PhaseComplete = "complete"
)

// SummaryRecord is the final record of a command.
type SummaryRecord struct {
	ObjectsFound   int64 `json:"objects_found"`
	ObjectsMatched int64 `json:"objects_matched"`
	BytesMatched   int64 `json:"bytes_matched"`
	Pages          int   `json:"pages"`

	Deleted int `json:"deleted,omitempty"`
	Failed  int `json:"failed,omitempty"`
	Rounds  int `json:"rounds,omitempty"`

	// Truncated is true when a limit stopped the command early.
	Truncated bool `json:"truncated,omitempty"`
	DryRun    bool `json:"dry_run,omitempty"`

	Duration      time.Duration `json:"duration_ns"`
	DurationHuman string        `json:"duration"`

	Errors int64 `json:"errors"`

	// Lines is the human-readable rendering of aggregate statistics.
	Lines []string `json:"lines,omitempty"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriteVersionItem writes a version or delete marker record for item.
func WriteVersionItem(ctx context.Context, w Writer, item provider.VersionItem) error {
	if m := item.DeleteMarker; m != nil {
		rec := &DeleteMarkerRecord{
			Key:          m.Key,
			VersionID:    m.VersionID,
			IsLatest:     m.IsLatest,
			LastModified: m.LastModified,
		}
		if m.Owner != nil {
			rec.Owner = m.Owner.DisplayName
			if rec.Owner == "" {
				rec.Owner = m.Owner.ID
			}
		}
		return w.WriteDeleteMarker(ctx, rec)
	}
	if v := item.Version; v != nil {
		rec := &VersionRecord{ObjectRecord: *NewObjectRecord(v)}
		if v.Version != nil {
			rec.VersionID = v.Version.VersionID
			rec.IsLatest = v.Version.IsLatest
		}
		return w.WriteVersion(ctx, rec)
	}
	return nil
}

// WriteFolders writes one folder record per common prefix of page.
func WriteFolders(ctx context.Context, w Writer, page *provider.PageResult) error {
	for _, f := range page.Folders {
		if err := w.WriteFolder(ctx, &FolderRecord{Prefix: f.Prefix, Name: f.Name()}); err != nil {
			return err
		}
	}
	return nil
}
