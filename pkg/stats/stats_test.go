package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3keeper/pkg/provider"
)

func TestTotals_OldRecentSplit(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, 0, -90)

	totals := New(cutoff)
	totals.AddPage(&provider.PageResult{
		Entries: []provider.ObjectEntry{
			{Key: "old", Size: 100, LastModified: now.AddDate(0, 0, -100)},
			{Key: "new", Size: 50, LastModified: now.AddDate(0, 0, -1), StorageClass: "GLACIER"},
			{Key: "edge", Size: 1, LastModified: cutoff},
		},
		Folders: []provider.FolderPrefix{{Prefix: "a/"}},
	})

	assert.Equal(t, Bucket{Count: 3, Bytes: 151}, totals.All)
	assert.Equal(t, Bucket{Count: 1, Bytes: 100}, totals.Old)
	assert.Equal(t, Bucket{Count: 2, Bytes: 51}, totals.Recent, "cutoff itself counts as recent")
	assert.Equal(t, int64(1), totals.Folders)
	assert.Equal(t, []string{"GLACIER", "STANDARD"}, totals.StorageClasses())
	assert.Equal(t, int64(101), totals.ByStorageClass["STANDARD"].Bytes)
	assert.Equal(t, now.AddDate(0, 0, -100), totals.Oldest)
	assert.Equal(t, now.AddDate(0, 0, -1), totals.Newest)
}

func TestTotals_NoCutoff(t *testing.T) {
	var totals Totals
	totals.Add(&provider.ObjectEntry{Size: 10})

	assert.Equal(t, int64(1), totals.All.Count)
	assert.Zero(t, totals.Old.Count)
	assert.Zero(t, totals.Recent.Count)
	assert.True(t, totals.Oldest.IsZero())
}

func TestTotals_Versions(t *testing.T) {
	totals := New(time.Time{})
	totals.AddVersion(provider.VersionItem{Version: &provider.ObjectEntry{Size: 5, Version: &provider.VersionInfo{IsLatest: true}}})
	totals.AddVersion(provider.VersionItem{Version: &provider.ObjectEntry{Size: 7, Version: &provider.VersionInfo{}}})
	totals.AddVersion(provider.VersionItem{DeleteMarker: &provider.DeleteMarker{Key: "k"}})

	assert.Equal(t, Bucket{Count: 2, Bytes: 12}, totals.All)
	assert.Equal(t, Bucket{Count: 1, Bytes: 7}, totals.Versions)
	assert.Equal(t, int64(1), totals.DeleteMarkers)
}

func TestTotals_Merge(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	a := New(time.Time{})
	a.Add(&provider.ObjectEntry{Size: 1, LastModified: t2})
	b := New(time.Time{})
	b.Add(&provider.ObjectEntry{Size: 2, LastModified: t1, StorageClass: "GLACIER"})

	a.Merge(b)
	assert.Equal(t, Bucket{Count: 2, Bytes: 3}, a.All)
	assert.Equal(t, t1, a.Oldest)
	assert.Equal(t, t2, a.Newest)
	require.Contains(t, a.ByStorageClass, "GLACIER")
	assert.Equal(t, int64(2), a.ByStorageClass["GLACIER"].Bytes)
}

func TestTotals_Lines(t *testing.T) {
	totals := New(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	totals.Add(&provider.ObjectEntry{Size: 2048, LastModified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})

	lines := totals.Lines()
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "total: 1 objects, 2.0 KiB", lines[0])
	assert.Equal(t, "older than 2024-03-01: 1 objects, 2.0 KiB", lines[1])
	assert.Equal(t, "since 2024-03-01: 0 objects, 0 B", lines[2])
	assert.Equal(t, "  standard: 1 objects, 2.0 KiB", lines[3])
}
