package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3keeper/pkg/provider"
)

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(Config{Includes: []string{"[invalid"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	var pe *PatternError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "[invalid", pe.Pattern)

	_, err = New(Config{Excludes: []string{"[a"}})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestMatcher_MatchKey(t *testing.T) {
	m, err := New(Config{
		Includes: []string{"logs/**/*.log", "media/*.mp4"},
		Excludes: []string{"**/tmp/**"},
	})
	require.NoError(t, err)

	tests := []struct {
		key  string
		want bool
	}{
		{"logs/app/2024/a.log", true},
		{"logs/a.log", true},
		{"logs/tmp/a.log", false},
		{"logs/app/a.txt", false},
		{"media/x.mp4", true},
		{"media/sub/x.mp4", false},
		{"other/a.log", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, m.MatchKey(tt.key))
		})
	}
}

func TestMatcher_NoIncludesMatchesAll(t *testing.T) {
	m, err := New(Config{Excludes: []string{"**/*.keep"}})
	require.NoError(t, err)

	assert.True(t, m.MatchKey("anything/at/all"))
	assert.False(t, m.MatchKey("x/y.keep"))
	assert.Equal(t, "", m.ListPrefix())
	assert.Equal(t, "exclude: **/*.keep", m.String())
}

func TestMatcher_Hidden(t *testing.T) {
	m, err := New(Config{ExcludeHidden: true})
	require.NoError(t, err)

	assert.False(t, m.MatchKey("a/.cache/x"))
	assert.False(t, m.MatchKey(".env"))
	assert.True(t, m.MatchKey("a/b.c"))

	open, err := New(Config{})
	require.NoError(t, err)
	assert.True(t, open.MatchKey(".env"))
	assert.Equal(t, "keys: any", open.String())
}

func TestMatcher_ImplementsFilter(t *testing.T) {
	m, err := New(Config{Includes: []string{"*.txt"}})
	require.NoError(t, err)

	var f Filter = m
	assert.True(t, f.Match(&provider.ObjectEntry{Key: "a.txt"}))
	assert.False(t, f.Match(&provider.ObjectEntry{Key: "a.bin"}))
}

func TestDerivePrefix(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"logs/2024/**/*.gz", "logs/2024/"},
		{"*.json", ""},
		{"logs/app-{a,b}/*.log", "logs/"},
		{"exact/path/file.txt", "exact/path/file.txt"},
		{"data/[0-9]*/*.csv", "data/"},
		{"data/2024-*", "data/"},
		{"file*", ""},
		{`data/file\*.txt`, "data/file*.txt"},
		{`data/\[backup\]/*.log`, "data/[backup]/"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePrefix(tt.pattern))
		})
	}
}

func TestIsGlobPattern(t *testing.T) {
	assert.True(t, IsGlobPattern("logs/*.gz"))
	assert.True(t, IsGlobPattern("tv/show?/"))
	assert.True(t, IsGlobPattern("{a,b}/x"))
	assert.False(t, IsGlobPattern("logs/2024/"))
	assert.False(t, IsGlobPattern(`data/file\*.txt`))
	assert.False(t, IsGlobPattern(""))
}

func TestMatcher_Prefixes(t *testing.T) {
	tests := []struct {
		name       string
		includes   []string
		prefixes   []string
		listPrefix string
	}{
		{"single", []string{"logs/2024/**"}, []string{"logs/2024/"}, "logs/2024/"},
		{"parent subsumes child", []string{"logs/**", "logs/2024/**"}, []string{"logs/"}, "logs/"},
		{"siblings", []string{"logs/2024/**", "logs/2025/**"}, []string{"logs/2024/", "logs/2025/"}, "logs/"},
		{"disjoint", []string{"a/**", "b/**"}, []string{"a/", "b/"}, ""},
		{"full listing", []string{"logs/**", "**/*.json"}, []string{""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(Config{Includes: tt.includes})
			require.NoError(t, err)
			assert.Equal(t, tt.prefixes, m.Prefixes())
			assert.Equal(t, tt.listPrefix, m.ListPrefix())
		})
	}
}

func TestIsHidden(t *testing.T) {
	assert.False(t, IsHidden("path/to/file.txt"))
	assert.True(t, IsHidden(".hidden/file.txt"))
	assert.True(t, IsHidden("path/.hidden/file.txt"))
	assert.True(t, IsHidden("path/to/.gitignore"))
	assert.False(t, IsHidden("path/to/file.txt."))
	assert.False(t, IsHidden(""))
}
