// Package provider defines abstractions for S3-compatible object storage
// listing and bulk mutation.
//
// Providers implement a small surface area: one page of objects, one page of
// object versions, one multi-delete batch. Traversal across pages and folders
// lives in package walker; providers never loop. Authentication uses the AWS
// SDK credential chain - providers should not implement custom auth logic.
package provider

import (
	"context"
	"time"
)

// Lister fetches single pages of a bucket listing.
//
// Implementations should:
//   - Issue exactly one request per call (no retries, no paging)
//   - Return ContinuationToken only when the page is truncated
//   - Be safe for concurrent use
type Lister interface {
	// ListPage returns one page of objects and common prefixes.
	ListPage(ctx context.Context, opts ListPageOptions) (*PageResult, error)

	// Close releases any resources held by the provider.
	Close() error
}

// VersionLister fetches single pages of an object-versions listing.
type VersionLister interface {
	// ListVersionsPage returns one page of versions and delete markers.
	ListVersionsPage(ctx context.Context, opts ListVersionsOptions) (*VersionPageResult, error)
}

// ListPageOptions configures a ListPage call.
type ListPageOptions struct {
	// Prefix filters results to keys starting with this value.
	// Empty string lists from the bucket root.
	Prefix string

	// Delimiter groups keys into common prefixes (e.g., "/").
	// Empty string disables grouping.
	Delimiter string

	// ContinuationToken resumes listing from a previous PageResult.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxKeys limits the number of keys returned.
	// Zero uses the provider default (1000). Values over 1000 are clamped.
	MaxKeys int
}

// ListVersionsOptions configures a ListVersionsPage call.
//
// KeyMarker and VersionIDMarker are a pair: pass both from the previous
// page's NextMarker, or neither.
type ListVersionsOptions struct {
	Prefix    string
	Delimiter string

	KeyMarker       string
	VersionIDMarker string

	// MaxKeys limits the number of versions returned.
	// Zero uses DefaultVersionPageSize.
	MaxKeys int
}

// Page size limits shared by all providers.
const (
	// MaxPageSize is the largest page the listing APIs return.
	MaxPageSize = 1000

	// DefaultPageSize is used when ListPageOptions.MaxKeys is zero.
	DefaultPageSize = 1000

	// DefaultVersionPageSize is used when ListVersionsOptions.MaxKeys is zero.
	// Version listings are denser and some S3-compatible stores misbehave
	// with full 1000-entry version pages.
	DefaultVersionPageSize = 250

	// MaxDeleteBatch is the multi-delete API's hard ceiling.
	MaxDeleteBatch = 1000
)

// ClampPageSize applies defaults and the MaxPageSize ceiling.
func ClampPageSize(requested, def int) int {
	if requested <= 0 {
		requested = def
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}

// BulkDeleter removes up to MaxDeleteBatch objects in one request.
type BulkDeleter interface {
	// DeleteObjects deletes the given objects.
	//
	// Returns ErrBatchTooLarge, without issuing a request, when more than
	// MaxDeleteBatch identifiers are passed. In quiet mode the result only
	// lists failures.
	DeleteObjects(ctx context.Context, ids []ObjectIdentifier, quiet bool) (*DeleteResult, error)
}

// DeleteResult reports the per-object outcome of a multi-delete request.
type DeleteResult struct {
	// Deleted lists objects the service reported as deleted.
	// Empty in quiet mode.
	Deleted []ObjectIdentifier

	// Errors lists objects the service failed to delete.
	Errors []DeleteError
}

// DeleteError is a single failed entry of a multi-delete request.
type DeleteError struct {
	Key       string
	VersionID string
	Code      string
	Message   string
}

// MoveMode selects between single-key and prefix renames.
type MoveMode int

const (
	// MoveExact moves the one object whose key equals Source.
	MoveExact MoveMode = iota

	// MovePrefix moves every object whose key starts with Source,
	// replacing that prefix with Destination.
	MovePrefix
)

// String returns the string representation of the move mode.
func (m MoveMode) String() string {
	if m == MovePrefix {
		return "prefix"
	}
	return "exact"
}

// MoveOperation describes one rename request.
type MoveOperation struct {
	Mode        MoveMode
	Source      string
	Destination string

	// Overwrite allows replacing existing objects at the destination.
	Overwrite bool
}

// Mover renames objects server-side.
//
// This is a Wasabi extension (HTTP MOVE); AWS S3 has no equivalent.
type Mover interface {
	Move(ctx context.Context, op MoveOperation) error
}

// GetObjectOptions configures an object retrieval.
type GetObjectOptions struct {
	Key       string
	VersionID string

	// Range is an HTTP Range header value, e.g. "bytes=0-99". See RangeBetween.
	Range string

	IfMatch           string
	IfNoneMatch       string
	IfModifiedSince   time.Time
	IfUnmodifiedSince time.Time
}

// ObjectGetter retrieves object content.
type ObjectGetter interface {
	// GetObject returns the object body. The caller must close it.
	GetObject(ctx context.Context, opts GetObjectOptions) (*GetObjectResult, error)
}

// Provider is the full capability set used by the CLI.
type Provider interface {
	Lister
	VersionLister
	BulkDeleter
	ObjectGetter
}

// ProviderType identifies a provider backend.
type ProviderType string

const (
	// ProviderS3 is the AWS SDK backed implementation.
	ProviderS3 ProviderType = "s3"

	// ProviderREST is the signed-HTTP implementation with its own XML codec.
	// It supports the Wasabi MOVE extension.
	ProviderREST ProviderType = "rest"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
