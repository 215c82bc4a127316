// Package manifest loads and validates s3keeper cleanup job manifests.
//
// A job manifest is a YAML or JSON file naming a bucket and an ordered list
// of tasks (list, du, delete, purge-versions, move). Unknown fields are
// rejected so a typo never silently widens a delete.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	connection:
//	  bucket: media-logs
//	  region: us-east-1
//	  endpoint: https://s3.wasabisys.com
//	tasks:
//	  - name: old-logs
//	    action: delete
//	    prefix: logs/
//	    recursive: true
//	    filters:
//	      age:
//	        older_than: 90d
//	      name_excludes: [plex]
//	    limit: 10000
//	    until_empty: true
package manifest

import (
	"github.com/3leaps/s3keeper/pkg/match"
)

// Manifest represents a validated job manifest.
type Manifest struct {
	// Version is the manifest format version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Connection configures the bucket and endpoint.
	Connection ConnectionConfig `json:"connection" yaml:"connection"`

	// Listing configures pagination for every task.
	Listing ListingConfig `json:"listing,omitempty" yaml:"listing,omitempty"`

	// Delete configures batch dispatch for delete tasks.
	Delete DeleteConfig `json:"delete,omitempty" yaml:"delete,omitempty"`

	// Output configures output destination and format.
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`

	// Tasks run in order. A failing task stops the job.
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// ConnectionConfig configures the storage connection.
type ConnectionConfig struct {
	// Bucket is the bucket name.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Backend selects the provider implementation: "sdk" or "rest".
	// Move tasks always use "rest".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	Region         string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Profile        string `json:"profile,omitempty" yaml:"profile,omitempty"`
	ForcePathStyle bool   `json:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`
}

// ListingConfig configures pagination.
type ListingConfig struct {
	// PageSize is MaxKeys for object listings. Range 1-1000. Default 1000.
	PageSize int `json:"page_size,omitempty" yaml:"page_size,omitempty"`

	// VersionPageSize is MaxKeys for versions listings. Default 250.
	VersionPageSize int `json:"version_page_size,omitempty" yaml:"version_page_size,omitempty"`

	// RateLimit is the maximum list requests per second (0 = unlimited).
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// MaxPages stops each walk after this many pages (0 = unlimited).
	MaxPages int `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
}

// DeleteConfig configures batch dispatch.
type DeleteConfig struct {
	// BatchSize is the number of keys per request. Range 1-1000. Default 1000.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`

	// Parallelism is the number of concurrent delete requests. Default 4.
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`

	// Quiet asks the service to report failures only.
	Quiet bool `json:"quiet,omitempty" yaml:"quiet,omitempty"`
}

// OutputConfig configures output destination and format.
type OutputConfig struct {
	// Destination is "stdout" or "file:/path/to/output.jsonl".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`

	// Format is "jsonl" or "table".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Task actions.
const (
	ActionList          = "list"
	ActionDU            = "du"
	ActionDelete        = "delete"
	ActionPurgeVersions = "purge-versions"
	ActionMove          = "move"
)

// Task is one step of a job.
type Task struct {
	// Name identifies the task in output and errors.
	Name string `json:"name" yaml:"name"`

	// Action is one of the Action* constants.
	Action string `json:"action" yaml:"action"`

	// Prefix is the start prefix of the walk, or the move source.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Delimiter groups keys into folders. Default "/".
	Delimiter *string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`

	// Recursive descends into every folder under Prefix.
	Recursive bool `json:"recursive,omitempty" yaml:"recursive,omitempty"`

	// Match applies glob include/exclude patterns to keys.
	Match *MatchConfig `json:"match,omitempty" yaml:"match,omitempty"`

	// Filters applies size, age, date, name and storage class filters.
	Filters *match.FilterConfig `json:"filters,omitempty" yaml:"filters,omitempty"`

	// Limit caps the number of matched objects (0 = unlimited).
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`

	// UntilEmpty repeats a delete task until a round matches nothing.
	UntilEmpty bool `json:"until_empty,omitempty" yaml:"until_empty,omitempty"`

	// MaxRounds bounds UntilEmpty (0 = unlimited).
	MaxRounds int `json:"max_rounds,omitempty" yaml:"max_rounds,omitempty"`

	// NoncurrentOnly keeps the latest version of every key in a
	// purge-versions task.
	NoncurrentOnly bool `json:"noncurrent_only,omitempty" yaml:"noncurrent_only,omitempty"`

	// DeleteMarkersOnly limits a purge-versions task to delete markers.
	DeleteMarkersOnly bool `json:"delete_markers_only,omitempty" yaml:"delete_markers_only,omitempty"`

	// Cutoff splits du totals into old and recent, e.g. "90d".
	Cutoff string `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`

	// Move configures a move task.
	Move *MoveConfig `json:"move,omitempty" yaml:"move,omitempty"`
}

// MatchConfig configures glob matching.
type MatchConfig struct {
	Includes      []string `json:"includes,omitempty" yaml:"includes,omitempty"`
	Excludes      []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	ExcludeHidden bool     `json:"exclude_hidden,omitempty" yaml:"exclude_hidden,omitempty"`
}

// MoveConfig configures a move task. The source is Task.Prefix.
type MoveConfig struct {
	Destination string `json:"destination" yaml:"destination"`

	// Mode is "exact" or "prefix". Default "prefix".
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	Overwrite bool `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
}

// Default values for optional fields.
const (
	DefaultVersion     = "1.0"
	DefaultBackend     = "sdk"
	DefaultDelimiter   = "/"
	DefaultDestination = "stdout"
	DefaultFormat      = "jsonl"
	DefaultMoveMode    = "prefix"
)

// ApplyDefaults fills in default values for optional fields. Page and batch
// sizes are left zero; the walker and dispatcher apply their own defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Connection.Backend == "" {
		m.Connection.Backend = DefaultBackend
	}
	if m.Output.Destination == "" {
		m.Output.Destination = DefaultDestination
	}
	if m.Output.Format == "" {
		m.Output.Format = DefaultFormat
	}
	for i := range m.Tasks {
		t := &m.Tasks[i]
		if t.Delimiter == nil {
			d := DefaultDelimiter
			t.Delimiter = &d
		}
		if t.Move != nil && t.Move.Mode == "" {
			t.Move.Mode = DefaultMoveMode
		}
	}
}

// DelimiterOrDefault returns the task delimiter.
func (t *Task) DelimiterOrDefault() string {
	if t.Delimiter == nil {
		return DefaultDelimiter
	}
	return *t.Delimiter
}

// Mutates reports whether the task changes the bucket.
func (t *Task) Mutates() bool {
	switch t.Action {
	case ActionDelete, ActionPurgeVersions, ActionMove:
		return true
	}
	return false
}

// Mutates reports whether any task changes the bucket.
func (m *Manifest) Mutates() bool {
	for i := range m.Tasks {
		if m.Tasks[i].Mutates() {
			return true
		}
	}
	return false
}
