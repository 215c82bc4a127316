package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3keeper/pkg/provider"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "raw bytes", input: "1024", want: 1024},
		{name: "zero", input: "0", want: 0},
		{name: "KB lowercase", input: "1kb", want: 1000},
		{name: "MB", input: "100MB", want: 100 * MB},
		{name: "KiB", input: "1KiB", want: 1024},
		{name: "GiB", input: "1GiB", want: GiB},
		{name: "K shorthand", input: "1K", want: 1000},
		{name: "decimal KB", input: "1.5KB", want: 1500},
		{name: "space before unit", input: "100 MB", want: 100 * MB},
		{name: "leading space", input: " 100MB", want: 100 * MB},
		{name: "explicit bytes", input: "1024B", want: 1024},

		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-100", wantErr: true},
		{name: "overflow", input: "9223372036854775808", wantErr: true},
		{name: "invalid unit", input: "100XB", wantErr: true},
		{name: "no number", input: "KB", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const (
	MB  int64 = 1000 * 1000
	GiB int64 = 1024 * 1024 * 1024
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "1.5 MiB", FormatSize(1536*1024))
	assert.Equal(t, "-1.0 KiB", FormatSize(-1024))
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "90d", want: 90 * 24 * time.Hour},
		{input: "2w", want: 14 * 24 * time.Hour},
		{input: "36h", want: 36 * time.Hour},
		{input: "1h30m", want: 90 * time.Minute},
		{input: "", wantErr: true},
		{input: "d", wantErr: true},
		{input: "-5d", wantErr: true},
		{input: "-1h", wantErr: true},
		{input: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAge(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAge)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-01-15T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-01-15T10:30:00.250Z")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))

	_, err = ParseDate("15/01/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestSizeFilter(t *testing.T) {
	f, err := NewSizeFilter(&SizeFilterConfig{Min: "1KB", Max: "100KB"})
	require.NoError(t, err)

	assert.True(t, f.Match(&provider.ObjectEntry{Size: 2000}))
	assert.True(t, f.Match(&provider.ObjectEntry{Size: 1000}))
	assert.True(t, f.Match(&provider.ObjectEntry{Size: 100000}))
	assert.False(t, f.Match(&provider.ObjectEntry{Size: 999}))
	assert.False(t, f.Match(&provider.ObjectEntry{Size: 100001}))

	_, err = NewSizeFilter(&SizeFilterConfig{Min: "2KB", Max: "1KB"})
	assert.ErrorIs(t, err, ErrInvalidSize)

	none, err := NewSizeFilter(nil)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestAgeFilter(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f, err := NewAgeFilter(&AgeFilterConfig{OlderThan: "90d"}, now)
	require.NoError(t, err)

	assert.True(t, f.Match(&provider.ObjectEntry{LastModified: now.AddDate(0, 0, -91)}))
	assert.False(t, f.Match(&provider.ObjectEntry{LastModified: now.AddDate(0, 0, -89)}))
	assert.False(t, f.Match(&provider.ObjectEntry{LastModified: now.Add(-90 * 24 * time.Hour)}), "cutoff is exclusive")
	assert.Equal(t, now.Add(-90*24*time.Hour), f.Before())

	recent, err := NewAgeFilter(&AgeFilterConfig{NewerThan: "24h"}, now)
	require.NoError(t, err)
	assert.True(t, recent.Match(&provider.ObjectEntry{LastModified: now.Add(-time.Hour)}))
	assert.False(t, recent.Match(&provider.ObjectEntry{LastModified: now.Add(-25 * time.Hour)}))

	_, err = NewAgeFilter(&AgeFilterConfig{OlderThan: "1d", NewerThan: "2d"}, now)
	assert.NoError(t, err)
	_, err = NewAgeFilter(&AgeFilterConfig{OlderThan: "2d", NewerThan: "1d"}, now)
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = NewAgeFilter(&AgeFilterConfig{OlderThan: "later"}, now)
	assert.ErrorIs(t, err, ErrInvalidAge)

	assert.Equal(t, f.Before(), OlderThan(90*24*time.Hour, now).Before())
}

func TestDateFilter(t *testing.T) {
	f, err := NewDateFilter(&DateFilterConfig{After: "2024-01-01", Before: "2024-02-01"})
	require.NoError(t, err)

	assert.True(t, f.Match(&provider.ObjectEntry{LastModified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}))
	assert.True(t, f.Match(&provider.ObjectEntry{LastModified: time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)}))
	assert.False(t, f.Match(&provider.ObjectEntry{LastModified: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}))
	assert.False(t, f.Match(&provider.ObjectEntry{LastModified: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)}))

	_, err = NewDateFilter(&DateFilterConfig{After: "2024-02-01", Before: "2024-01-01"})
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = NewDateFilter(&DateFilterConfig{After: "yesterday"})
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestRegexFilter(t *testing.T) {
	f, err := NewRegexFilter(`\.log$`)
	require.NoError(t, err)
	assert.True(t, f.Match(&provider.ObjectEntry{Key: "a/b.log"}))
	assert.False(t, f.Match(&provider.ObjectEntry{Key: "a/b.log.gz"}))

	_, err = NewRegexFilter("(")
	assert.ErrorIs(t, err, ErrInvalidRegex)
}

func TestNameFilter(t *testing.T) {
	f := NewNameFilter(nil, []string{"plex"})
	require.NotNil(t, f)

	assert.False(t, f.Match(&provider.ObjectEntry{Key: "media/plexmediaserver.log", Delimiter: "/"}))
	assert.True(t, f.Match(&provider.ObjectEntry{Key: "plex/server.log", Delimiter: "/"}), "only the name is tested")
	assert.False(t, f.Match(&provider.ObjectEntry{Key: "plex/server.log"}), "no delimiter means the name is the key")

	wanted := NewNameFilter([]string{".mp4", ".mkv"}, []string{"sample"})
	assert.True(t, wanted.Match(&provider.ObjectEntry{Key: "a/movie.mkv", Delimiter: "/"}))
	assert.False(t, wanted.Match(&provider.ObjectEntry{Key: "a/sample.mkv", Delimiter: "/"}))
	assert.False(t, wanted.Match(&provider.ObjectEntry{Key: "a/notes.txt", Delimiter: "/"}))

	assert.Nil(t, NewNameFilter(nil, nil))
}

func TestStorageClassFilter(t *testing.T) {
	f := NewStorageClassFilter([]string{"standard", "GLACIER"})
	assert.True(t, f.Match(&provider.ObjectEntry{}))
	assert.True(t, f.Match(&provider.ObjectEntry{StorageClass: "GLACIER"}))
	assert.False(t, f.Match(&provider.ObjectEntry{StorageClass: "STANDARD_IA"}))
	assert.Nil(t, NewStorageClassFilter(nil))
}

func TestNewFilterFromConfig(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	f, err := NewFilterFromConfig(&FilterConfig{
		Size:         &SizeFilterConfig{Min: "1KB"},
		Age:          &AgeFilterConfig{OlderThan: "90d"},
		NameExcludes: []string{"plex"},
	}, now)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Len(t, f.Filters(), 3)

	old := now.AddDate(0, 0, -100)
	assert.True(t, f.Match(&provider.ObjectEntry{Key: "a.log", Size: 2000, LastModified: old}))
	assert.False(t, f.Match(&provider.ObjectEntry{Key: "a.log", Size: 10, LastModified: old}))
	assert.False(t, f.Match(&provider.ObjectEntry{Key: "plex.log", Size: 2000, LastModified: old}))
	assert.False(t, f.Match(&provider.ObjectEntry{Key: "a.log", Size: 2000, LastModified: now}))
	assert.Contains(t, f.String(), "size: >= 1000 B")

	empty, err := NewFilterFromConfig(&FilterConfig{}, now)
	require.NoError(t, err)
	assert.Nil(t, empty)
	assert.True(t, empty.Match(&provider.ObjectEntry{}), "nil composite matches everything")
	assert.Equal(t, "no filters", empty.String())

	_, err = NewFilterFromConfig(&FilterConfig{KeyRegex: "("}, now)
	assert.ErrorIs(t, err, ErrInvalidRegex)
}

func TestNewCompositeFilter_SkipsTypedNil(t *testing.T) {
	var size *SizeFilter
	assert.Nil(t, NewCompositeFilter(size, nil))
}

func TestMatchVersion(t *testing.T) {
	now := time.Now()
	f := OlderThan(time.Hour, now)

	oldTime := now.Add(-2 * time.Hour)
	assert.True(t, MatchVersion(f, provider.VersionItem{Version: &provider.ObjectEntry{LastModified: oldTime}}))
	assert.True(t, MatchVersion(f, provider.VersionItem{DeleteMarker: &provider.DeleteMarker{Key: "k", LastModified: &oldTime}}))
	assert.False(t, MatchVersion(f, provider.VersionItem{DeleteMarker: &provider.DeleteMarker{Key: "k", LastModified: &now}}))
	assert.False(t, MatchVersion(f, provider.VersionItem{}))
}
