package manifest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifestYAML() string {
	return `version: "1.0"
connection:
  bucket: media-logs
  region: us-east-1
  endpoint: https://s3.wasabisys.com
tasks:
  - name: old-logs
    action: delete
    prefix: logs/
    recursive: true
    filters:
      age:
        older_than: 90d
      name_excludes: [plex]
    limit: 10000
    until_empty: true
  - name: usage
    action: du
    cutoff: 90d
`
}

func validManifestJSON() string {
	return `{
  "version": "1.0",
  "connection": {"bucket": "media-logs", "backend": "rest"},
  "tasks": [
    {"name": "rename", "action": "move", "prefix": "tv/old/", "move": {"destination": "tv/archive/"}}
  ]
}`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("YAML", func(t *testing.T) {
		m, err := Load(writeFile(t, "job.yaml", validManifestYAML()))
		require.NoError(t, err)

		assert.Equal(t, "media-logs", m.Connection.Bucket)
		assert.Equal(t, "sdk", m.Connection.Backend)
		assert.Equal(t, "stdout", m.Output.Destination)
		assert.Equal(t, "jsonl", m.Output.Format)
		require.Len(t, m.Tasks, 2)

		task := m.Tasks[0]
		assert.Equal(t, ActionDelete, task.Action)
		assert.Equal(t, "/", task.DelimiterOrDefault())
		assert.True(t, task.Recursive)
		assert.True(t, task.UntilEmpty)
		assert.Equal(t, 10000, task.Limit)
		require.NotNil(t, task.Filters)
		require.NotNil(t, task.Filters.Age)
		assert.Equal(t, "90d", task.Filters.Age.OlderThan)
		assert.Equal(t, []string{"plex"}, task.Filters.NameExcludes)

		assert.True(t, m.Mutates())
		assert.False(t, m.Tasks[1].Mutates())
	})

	t.Run("JSON", func(t *testing.T) {
		m, err := Load(writeFile(t, "job.json", validManifestJSON()))
		require.NoError(t, err)

		require.Len(t, m.Tasks, 1)
		require.NotNil(t, m.Tasks[0].Move)
		assert.Equal(t, "tv/archive/", m.Tasks[0].Move.Destination)
		assert.Equal(t, "prefix", m.Tasks[0].Move.Mode)
		assert.True(t, m.Tasks[0].Mutates())
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := Load(writeFile(t, "empty.yaml", "  \n"))
		require.ErrorIs(t, err, ErrEmptyManifest)
	})
}

func TestLoadFromReader(t *testing.T) {
	m, err := LoadFromReader(strings.NewReader(validManifestYAML()), "stdin")
	require.NoError(t, err)
	assert.Equal(t, "media-logs", m.Connection.Bucket)
}

func TestLoad_UnknownFieldsRejected(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
	}{
		{
			name: "YAML typo",
			path: "job.yaml",
			content: `version: "1.0"
connection:
  bucket: b
tasks:
  - name: t
    action: list
    recursiv: true
`,
		},
		{
			name:    "JSON typo",
			path:    "job.json",
			content: `{"version": "1.0", "connection": {"bucket": "b"}, "tasks": [{"name": "t", "action": "list", "limt": 5}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.content), tt.path)
			require.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Manifest {
		return &Manifest{
			Version:    "1.0",
			Connection: ConnectionConfig{Bucket: "b"},
			Tasks:      []Task{{Name: "t", Action: ActionList}},
		}
	}

	tests := []struct {
		name   string
		mutate func(m *Manifest)
		path   string
	}{
		{"bad version", func(m *Manifest) { m.Version = "2.0" }, "/version"},
		{"missing bucket", func(m *Manifest) { m.Connection.Bucket = "" }, "/connection/bucket"},
		{"bad backend", func(m *Manifest) { m.Connection.Backend = "ftp" }, "/connection/backend"},
		{"page size too large", func(m *Manifest) { m.Listing.PageSize = 1001 }, "/listing/page_size"},
		{"batch size too large", func(m *Manifest) { m.Delete.BatchSize = 1001 }, "/delete/batch_size"},
		{"bad format", func(m *Manifest) { m.Output.Format = "xml" }, "/output/format"},
		{"bad destination", func(m *Manifest) { m.Output.Destination = "/tmp/x" }, "/output/destination"},
		{"no tasks", func(m *Manifest) { m.Tasks = nil }, "/tasks"},
		{"unknown action", func(m *Manifest) { m.Tasks[0].Action = "copy" }, "/tasks/0/action"},
		{"duplicate name", func(m *Manifest) { m.Tasks = append(m.Tasks, m.Tasks[0]) }, "/tasks/1/name"},
		{"move without destination", func(m *Manifest) {
			m.Tasks[0] = Task{Name: "t", Action: ActionMove, Prefix: "a/"}
		}, "/tasks/0/move/destination"},
		{"until_empty on list", func(m *Manifest) { m.Tasks[0].UntilEmpty = true }, "/tasks/0/until_empty"},
		{"noncurrent_only on delete", func(m *Manifest) {
			m.Tasks[0] = Task{Name: "t", Action: ActionDelete, Prefix: "a/", NoncurrentOnly: true}
		}, "/tasks/0/noncurrent_only"},
		{"unbounded delete", func(m *Manifest) { m.Tasks[0].Action = ActionDelete }, "/tasks/0"},
		{"bad cutoff", func(m *Manifest) { m.Tasks[0].Cutoff = "soon" }, "/tasks/0/cutoff"},
		{"bad glob", func(m *Manifest) {
			m.Tasks[0].Match = &MatchConfig{Includes: []string{"[a"}}
		}, "/tasks/0/match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)

			err := Validate(m)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrValidationFailed)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, err.Error(), tt.path)
		})
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, Validate(base()))
	})
}

func TestLoadFromBytes_SchemaRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
	}{
		{
			name:    "batch size over the delete limit",
			content: "version: \"1.0\"\nconnection:\n  bucket: b\ndelete:\n  batch_size: 5000\ntasks:\n  - name: t\n    action: list\n",
			path:    "/delete/batch_size",
		},
		{
			name:    "unknown action",
			content: "version: \"1.0\"\nconnection:\n  bucket: b\ntasks:\n  - name: t\n    action: copy\n",
			path:    "/tasks/0/action",
		},
		{
			name:    "negative limit",
			content: "version: \"1.0\"\nconnection:\n  bucket: b\ntasks:\n  - name: t\n    action: list\n    limit: -1\n",
			path:    "/tasks/0/limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.content), "job.yaml")
			require.ErrorIs(t, err, ErrValidationFailed)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestLoadFromBytes_CrossFieldRules(t *testing.T) {
	content := `version: "1.0"
connection:
  bucket: b
tasks:
  - name: wipe
    action: delete
  - name: wipe
    action: list
`
	_, err := LoadFromBytes([]byte(content), "job.yaml")
	require.ErrorIs(t, err, ErrValidationFailed)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "delete requires a prefix")
	assert.Contains(t, err.Error(), "duplicate task name")
}

func TestValidationErrors_Error(t *testing.T) {
	single := ValidationErrors{{Path: "/version", Message: "bad"}}
	assert.Equal(t, "/version: bad", single.Error())

	multi := ValidationErrors{{Path: "/a", Message: "x"}, {Message: "y"}}
	assert.Contains(t, multi.Error(), "2 errors")
	assert.Contains(t, multi.Error(), "  - /a: x")
	assert.Contains(t, multi.Error(), "  - y")
}

func TestTask_MatcherConfig(t *testing.T) {
	task := Task{}
	assert.Empty(t, task.MatcherConfig().Includes)

	task.Match = &MatchConfig{Includes: []string{"logs/**"}, ExcludeHidden: true}
	cfg := task.MatcherConfig()
	assert.Equal(t, []string{"logs/**"}, cfg.Includes)
	assert.True(t, cfg.ExcludeHidden)
}
