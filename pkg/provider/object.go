package provider

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ObjectEntry is one object (or one object version) from a listing page.
type ObjectEntry struct {
	// Key is the full object key in the bucket.
	Key string

	// Delimiter is the delimiter of the listing that produced this entry.
	// It is only used to derive Name.
	Delimiter string

	// ETag is the entity tag with surrounding quotes removed.
	// May be empty for some version listings.
	ETag string

	// LastModified is when the object (version) was written.
	LastModified time.Time

	// Size is the object size in bytes.
	Size int64

	// StorageClass is the storage class reported by the service.
	StorageClass string

	// Version is set only for entries from a versions listing.
	Version *VersionInfo
}

// VersionInfo carries the version fields of a versioned entry.
type VersionInfo struct {
	IsLatest  bool
	VersionID string
}

// Name returns the key segment after the last delimiter.
func (e ObjectEntry) Name() string {
	return Name(e.Key, e.Delimiter)
}

// ObjectIdentifier returns the identity used for delete requests.
func (e ObjectEntry) ObjectIdentifier() ObjectIdentifier {
	id := ObjectIdentifier{Key: e.Key}
	if e.Version != nil {
		id.VersionID = e.Version.VersionID
	}
	return id
}

// Owner identifies the account owning an object or delete marker.
type Owner struct {
	ID          string
	DisplayName string
}

// DeleteMarker is a versions-listing entry recording a deletion.
//
// Every field but Key is optional on the wire.
type DeleteMarker struct {
	Key          string
	Delimiter    string
	VersionID    string
	IsLatest     *bool
	LastModified *time.Time
	Owner        *Owner
}

// Name returns the key segment after the last delimiter.
func (m DeleteMarker) Name() string {
	return Name(m.Key, m.Delimiter)
}

// ObjectIdentifier returns the identity used for delete requests.
func (m DeleteMarker) ObjectIdentifier() ObjectIdentifier {
	return ObjectIdentifier{Key: m.Key, VersionID: m.VersionID}
}

// FolderPrefix is one common prefix reported by a delimited listing.
//
// It is a key-space partition, not a physical directory. FolderPrefix is
// comparable and is used directly as a set key by the walker.
type FolderPrefix struct {
	Prefix    string
	Delimiter string
}

// Name returns the last prefix segment, ignoring the trailing delimiter.
func (f FolderPrefix) Name() string {
	if f.Delimiter == "" {
		return f.Prefix
	}
	return Name(strings.TrimSuffix(f.Prefix, f.Delimiter), f.Delimiter)
}

// ObjectIdentifier is the minimal identity of an object for mutations.
type ObjectIdentifier struct {
	Key string

	// VersionID selects a specific version. Empty targets the current object.
	VersionID string
}

// ObjectIdentifier returns the identifier itself.
func (id ObjectIdentifier) ObjectIdentifier() ObjectIdentifier {
	return id
}

// String returns "key" or "key?versionId=v".
func (id ObjectIdentifier) String() string {
	if id.VersionID == "" {
		return id.Key
	}
	return id.Key + "?versionId=" + id.VersionID
}

// IdentifierProvider is implemented by everything that can be deleted.
type IdentifierProvider interface {
	ObjectIdentifier() ObjectIdentifier
}

// Identifiers converts a slice of entries, markers or items to identifiers.
func Identifiers[T IdentifierProvider](items []T) []ObjectIdentifier {
	ids := make([]ObjectIdentifier, len(items))
	for i, item := range items {
		ids[i] = item.ObjectIdentifier()
	}
	return ids
}

// Name derives the display name of a key: the suffix after the last
// occurrence of delimiter. With an empty delimiter the full key is returned.
func Name(key, delimiter string) string {
	if delimiter == "" {
		return key
	}
	idx := strings.LastIndex(key, delimiter)
	if idx < 0 {
		return key
	}
	return key[idx+len(delimiter):]
}

// GetObjectResult is the response to a GetObject call.
type GetObjectResult struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	ContentRange  string
	ETag          string
	LastModified  time.Time
	VersionID     string
}

// RangeFrom returns a Range header value for bytes from offset to the end.
func RangeFrom(offset int64) string {
	return fmt.Sprintf("bytes=%d-", offset)
}

// RangeLast returns a Range header value for the final n bytes.
func RangeLast(n int64) string {
	return fmt.Sprintf("bytes=-%d", n)
}

// RangeBetween returns a Range header value for [start, end).
func RangeBetween(start, end int64) string {
	return fmt.Sprintf("bytes=%d-%d", start, end-1)
}
