// Package stats aggregates object counts and sizes over a walk.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/3leaps/s3keeper/pkg/provider"
)

// Bucket is one count/bytes total.
type Bucket struct {
	Count int64 `json:"count"`
	Bytes int64 `json:"bytes"`
}

func (b *Bucket) add(size int64) {
	b.Count++
	b.Bytes += size
}

// String formats the total as "N objects, X".
func (b Bucket) String() string {
	return fmt.Sprintf("%s objects, %s", humanize.Comma(b.Count), humanize.IBytes(uint64(max(b.Bytes, 0))))
}

// Totals aggregates entries. The zero value has no age split; use New to
// set a cutoff.
//
// Totals is not safe for concurrent use.
type Totals struct {
	All Bucket `json:"all"`

	// Old and Recent split All at Cutoff. Both are empty when Cutoff is zero.
	Old    Bucket    `json:"old"`
	Recent Bucket    `json:"recent"`
	Cutoff time.Time `json:"cutoff,omitzero"`

	ByStorageClass map[string]*Bucket `json:"by_storage_class,omitempty"`

	// Versions and DeleteMarkers are only counted for versions listings.
	Versions      Bucket `json:"versions"`
	DeleteMarkers int64  `json:"delete_markers"`

	Folders int64 `json:"folders"`

	Oldest time.Time `json:"oldest,omitzero"`
	Newest time.Time `json:"newest,omitzero"`
}

// New returns totals split at cutoff. A zero cutoff disables the split.
func New(cutoff time.Time) *Totals {
	return &Totals{Cutoff: cutoff}
}

// Add counts one entry.
func (t *Totals) Add(e *provider.ObjectEntry) {
	t.All.add(e.Size)

	if !t.Cutoff.IsZero() {
		if e.LastModified.Before(t.Cutoff) {
			t.Old.add(e.Size)
		} else {
			t.Recent.add(e.Size)
		}
	}

	class := e.StorageClass
	if class == "" {
		class = "STANDARD"
	}
	if t.ByStorageClass == nil {
		t.ByStorageClass = make(map[string]*Bucket)
	}
	b, ok := t.ByStorageClass[class]
	if !ok {
		b = &Bucket{}
		t.ByStorageClass[class] = b
	}
	b.add(e.Size)

	if !e.LastModified.IsZero() {
		if t.Oldest.IsZero() || e.LastModified.Before(t.Oldest) {
			t.Oldest = e.LastModified
		}
		if e.LastModified.After(t.Newest) {
			t.Newest = e.LastModified
		}
	}
}

// AddPage counts every entry and folder of an object listing page.
func (t *Totals) AddPage(page *provider.PageResult) {
	for i := range page.Entries {
		t.Add(&page.Entries[i])
	}
	t.Folders += int64(len(page.Folders))
}

// AddVersion counts a versions-listing item. Stored versions feed the same
// totals as objects; noncurrent versions are also counted in Versions.
func (t *Totals) AddVersion(item provider.VersionItem) {
	switch {
	case item.DeleteMarker != nil:
		t.DeleteMarkers++
	case item.Version != nil:
		t.Add(item.Version)
		if item.Version.Version != nil && !item.Version.Version.IsLatest {
			t.Versions.add(item.Version.Size)
		}
	}
}

// Merge adds other into t.
func (t *Totals) Merge(other *Totals) {
	t.All.Count += other.All.Count
	t.All.Bytes += other.All.Bytes
	t.Old.Count += other.Old.Count
	t.Old.Bytes += other.Old.Bytes
	t.Recent.Count += other.Recent.Count
	t.Recent.Bytes += other.Recent.Bytes
	t.Versions.Count += other.Versions.Count
	t.Versions.Bytes += other.Versions.Bytes
	t.DeleteMarkers += other.DeleteMarkers
	t.Folders += other.Folders

	for class, b := range other.ByStorageClass {
		if t.ByStorageClass == nil {
			t.ByStorageClass = make(map[string]*Bucket)
		}
		mine, ok := t.ByStorageClass[class]
		if !ok {
			mine = &Bucket{}
			t.ByStorageClass[class] = mine
		}
		mine.Count += b.Count
		mine.Bytes += b.Bytes
	}

	if !other.Oldest.IsZero() && (t.Oldest.IsZero() || other.Oldest.Before(t.Oldest)) {
		t.Oldest = other.Oldest
	}
	if other.Newest.After(t.Newest) {
		t.Newest = other.Newest
	}
}

// StorageClasses returns the storage classes seen, sorted.
func (t *Totals) StorageClasses() []string {
	out := make([]string, 0, len(t.ByStorageClass))
	for class := range t.ByStorageClass {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// Lines renders the totals as human-readable report lines.
func (t *Totals) Lines() []string {
	lines := []string{"total: " + t.All.String()}
	if !t.Cutoff.IsZero() {
		lines = append(lines,
			fmt.Sprintf("older than %s: %s", t.Cutoff.Format(time.DateOnly), t.Old),
			fmt.Sprintf("since %s: %s", t.Cutoff.Format(time.DateOnly), t.Recent),
		)
	}
	for _, class := range t.StorageClasses() {
		lines = append(lines, fmt.Sprintf("  %s: %s", strings.ToLower(class), t.ByStorageClass[class]))
	}
	if t.Versions.Count > 0 || t.DeleteMarkers > 0 {
		lines = append(lines,
			"noncurrent versions: "+t.Versions.String(),
			"delete markers: "+humanize.Comma(t.DeleteMarkers),
		)
	}
	if t.Folders > 0 {
		lines = append(lines, "folders: "+humanize.Comma(t.Folders))
	}
	if !t.Oldest.IsZero() {
		lines = append(lines, fmt.Sprintf("oldest: %s (%s)", t.Oldest.Format(time.RFC3339), humanize.Time(t.Oldest)))
	}
	return lines
}
