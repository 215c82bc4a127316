package provider

// PageResult is one page of an object listing.
//
// NextContinuationToken is non-empty if and only if IsTruncated is true.
// Providers normalize the pair so consumers only need HasMore.
type PageResult struct {
	Prefix    string
	Delimiter string

	IsTruncated           bool
	NextContinuationToken string

	// Entries are objects directly under Prefix (or all objects under it when
	// Delimiter is empty), in API order.
	Entries []ObjectEntry

	// Folders are the common prefixes of this page, in API order.
	Folders []FolderPrefix
}

// HasMore reports whether another page exists for the same prefix.
func (p *PageResult) HasMore() bool {
	return p.IsTruncated && p.NextContinuationToken != ""
}

// TotalSize returns the summed size of the page's entries.
func (p *PageResult) TotalSize() int64 {
	var total int64
	for _, e := range p.Entries {
		total += e.Size
	}
	return total
}

// NormalizeTruncation enforces the token/truncation pairing.
//
// A token without the truncated flag, or the flag without a token, is treated
// as the end of the listing.
func (p *PageResult) NormalizeTruncation() {
	if !p.IsTruncated || p.NextContinuationToken == "" {
		p.IsTruncated = false
		p.NextContinuationToken = ""
	}
}

// VersionMarker is the continuation cursor of a versions listing.
//
// Both halves are always carried together.
type VersionMarker struct {
	KeyMarker       string
	VersionIDMarker string
}

// NewVersionMarker returns a marker only when both halves are present.
//
// Some services send NextKeyMarker without NextVersionIdMarker on the final
// page; that is treated as "no more pages", not as an error.
func NewVersionMarker(keyMarker, versionIDMarker string) *VersionMarker {
	if keyMarker == "" || versionIDMarker == "" {
		return nil
	}
	return &VersionMarker{KeyMarker: keyMarker, VersionIDMarker: versionIDMarker}
}

// VersionItem is one entry of a versions page: either a stored version or a
// delete marker. Exactly one field is set.
type VersionItem struct {
	Version      *ObjectEntry
	DeleteMarker *DeleteMarker
}

// IsDeleteMarker reports whether the item is a delete marker.
func (i VersionItem) IsDeleteMarker() bool {
	return i.DeleteMarker != nil
}

// Key returns the object key of the item.
func (i VersionItem) Key() string {
	if i.DeleteMarker != nil {
		return i.DeleteMarker.Key
	}
	if i.Version != nil {
		return i.Version.Key
	}
	return ""
}

// ObjectIdentifier returns the key and version ID of the item.
func (i VersionItem) ObjectIdentifier() ObjectIdentifier {
	if i.DeleteMarker != nil {
		return i.DeleteMarker.ObjectIdentifier()
	}
	if i.Version != nil {
		return i.Version.ObjectIdentifier()
	}
	return ObjectIdentifier{}
}

// VersionPageResult is one page of an object-versions listing.
type VersionPageResult struct {
	Prefix    string
	Delimiter string

	// Items holds versions and delete markers interleaved in API order.
	Items []VersionItem

	// NextMarker is set only when more versions remain.
	NextMarker *VersionMarker
}

// HasMore reports whether another versions page exists.
func (p *VersionPageResult) HasMore() bool {
	return p.NextMarker != nil
}

// Versions returns the stored versions of the page, in order.
func (p *VersionPageResult) Versions() []ObjectEntry {
	out := make([]ObjectEntry, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Version != nil {
			out = append(out, *item.Version)
		}
	}
	return out
}

// DeleteMarkers returns the delete markers of the page, in order.
func (p *VersionPageResult) DeleteMarkers() []DeleteMarker {
	var out []DeleteMarker
	for _, item := range p.Items {
		if item.DeleteMarker != nil {
			out = append(out, *item.DeleteMarker)
		}
	}
	return out
}
