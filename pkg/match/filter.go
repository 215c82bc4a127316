package match

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/3leaps/s3keeper/pkg/provider"
)

// Filter evaluates whether an entry passes filter criteria.
//
// Filters only use fields returned by a listing, so they never cost extra
// requests.
type Filter interface {
	// Match returns true if the entry passes the filter.
	Match(e *provider.ObjectEntry) bool

	// String returns a human-readable description of the filter.
	String() string
}

// FilterConfig holds filter criteria from a job manifest or CLI flags.
type FilterConfig struct {
	// Size specifies min/max size constraints.
	Size *SizeFilterConfig `json:"size,omitempty" yaml:"size,omitempty"`

	// Modified specifies an absolute date range.
	Modified *DateFilterConfig `json:"modified,omitempty" yaml:"modified,omitempty"`

	// Age specifies a range relative to the time the filter is built.
	Age *AgeFilterConfig `json:"age,omitempty" yaml:"age,omitempty"`

	// KeyRegex is a regex pattern applied to the full key.
	KeyRegex string `json:"key_regex,omitempty" yaml:"key_regex,omitempty"`

	// NameContains keeps entries whose name contains any of the values.
	NameContains []string `json:"name_contains,omitempty" yaml:"name_contains,omitempty"`

	// NameExcludes drops entries whose name contains any of the values.
	NameExcludes []string `json:"name_excludes,omitempty" yaml:"name_excludes,omitempty"`

	// StorageClasses keeps entries in one of the listed storage classes.
	StorageClasses []string `json:"storage_classes,omitempty" yaml:"storage_classes,omitempty"`
}

// SizeFilterConfig specifies size constraints.
type SizeFilterConfig struct {
	// Min is the minimum size (inclusive). Supports human-readable: "1KB", "100MiB".
	Min string `json:"min,omitempty" yaml:"min,omitempty"`

	// Max is the maximum size (inclusive).
	Max string `json:"max,omitempty" yaml:"max,omitempty"`
}

// DateFilterConfig specifies date range constraints.
type DateFilterConfig struct {
	// After keeps objects modified at or after this time (inclusive).
	// Supports ISO 8601: "2024-01-15" or "2024-01-15T10:30:00Z".
	After string `json:"after,omitempty" yaml:"after,omitempty"`

	// Before keeps objects modified before this time (exclusive).
	Before string `json:"before,omitempty" yaml:"before,omitempty"`
}

// AgeFilterConfig specifies age constraints such as "90d" or "36h".
type AgeFilterConfig struct {
	// OlderThan keeps objects last modified more than this long ago.
	OlderThan string `json:"older_than,omitempty" yaml:"older_than,omitempty"`

	// NewerThan keeps objects last modified less than this long ago.
	NewerThan string `json:"newer_than,omitempty" yaml:"newer_than,omitempty"`
}

// Filter errors.
var (
	ErrInvalidSize  = errors.New("invalid size value")
	ErrInvalidDate  = errors.New("invalid date value")
	ErrInvalidAge   = errors.New("invalid age value")
	ErrInvalidRegex = errors.New("invalid regex pattern")
)

// SizeFilter filters entries by size range.
type SizeFilter struct {
	min int64 // -1 means no minimum
	max int64 // -1 means no maximum
}

// NewSizeFilter creates a size filter from config.
// Returns nil if cfg is nil.
func NewSizeFilter(cfg *SizeFilterConfig) (*SizeFilter, error) {
	if cfg == nil {
		return nil, nil
	}

	f := &SizeFilter{min: -1, max: -1}

	if cfg.Min != "" {
		size, err := ParseSize(cfg.Min)
		if err != nil {
			return nil, fmt.Errorf("min size: %w", err)
		}
		f.min = size
	}

	if cfg.Max != "" {
		size, err := ParseSize(cfg.Max)
		if err != nil {
			return nil, fmt.Errorf("max size: %w", err)
		}
		f.max = size
	}

	if f.min >= 0 && f.max >= 0 && f.min > f.max {
		return nil, fmt.Errorf("%w: min (%d) > max (%d)", ErrInvalidSize, f.min, f.max)
	}

	return f, nil
}

// Match returns true if the entry size is within the configured range.
func (f *SizeFilter) Match(e *provider.ObjectEntry) bool {
	if f.min >= 0 && e.Size < f.min {
		return false
	}
	if f.max >= 0 && e.Size > f.max {
		return false
	}
	return true
}

// String returns a human-readable description.
func (f *SizeFilter) String() string {
	switch {
	case f.min >= 0 && f.max >= 0:
		return fmt.Sprintf("size: %s - %s", FormatSize(f.min), FormatSize(f.max))
	case f.min >= 0:
		return fmt.Sprintf("size: >= %s", FormatSize(f.min))
	case f.max >= 0:
		return fmt.Sprintf("size: <= %s", FormatSize(f.max))
	default:
		return "size: any"
	}
}

// DateFilter filters entries by modification time range.
//
// AgeFilterConfig values are also turned into a DateFilter, with cutoffs
// fixed when the filter is built so every page of a walk sees the same ones.
type DateFilter struct {
	after  time.Time // zero means no after constraint
	before time.Time // zero means no before constraint
}

// NewDateFilter creates a date filter from config.
// Returns nil if cfg is nil.
func NewDateFilter(cfg *DateFilterConfig) (*DateFilter, error) {
	if cfg == nil {
		return nil, nil
	}

	f := &DateFilter{}

	if cfg.After != "" {
		t, err := ParseDate(cfg.After)
		if err != nil {
			return nil, fmt.Errorf("after date: %w", err)
		}
		f.after = t
	}

	if cfg.Before != "" {
		t, err := ParseDate(cfg.Before)
		if err != nil {
			return nil, fmt.Errorf("before date: %w", err)
		}
		f.before = t
	}

	return f.validate()
}

// NewAgeFilter creates a date filter from ages relative to now.
// Returns nil if cfg is nil.
func NewAgeFilter(cfg *AgeFilterConfig, now time.Time) (*DateFilter, error) {
	if cfg == nil {
		return nil, nil
	}

	f := &DateFilter{}

	if cfg.OlderThan != "" {
		age, err := ParseAge(cfg.OlderThan)
		if err != nil {
			return nil, fmt.Errorf("older than: %w", err)
		}
		f.before = now.Add(-age).UTC()
	}

	if cfg.NewerThan != "" {
		age, err := ParseAge(cfg.NewerThan)
		if err != nil {
			return nil, fmt.Errorf("newer than: %w", err)
		}
		f.after = now.Add(-age).UTC()
	}

	return f.validate()
}

// OlderThan returns a filter keeping entries modified before now-age.
func OlderThan(age time.Duration, now time.Time) *DateFilter {
	return &DateFilter{before: now.Add(-age).UTC()}
}

func (f *DateFilter) validate() (*DateFilter, error) {
	if !f.after.IsZero() && !f.before.IsZero() && !f.after.Before(f.before) {
		return nil, fmt.Errorf("%w: after (%s) >= before (%s)", ErrInvalidDate, f.after, f.before)
	}
	return f, nil
}

// Match returns true if the entry modification time is within range.
func (f *DateFilter) Match(e *provider.ObjectEntry) bool {
	if !f.after.IsZero() && e.LastModified.Before(f.after) {
		return false
	}
	if !f.before.IsZero() && !e.LastModified.Before(f.before) {
		return false
	}
	return true
}

// Before returns the exclusive upper bound, or the zero time.
func (f *DateFilter) Before() time.Time {
	return f.before
}

// String returns a human-readable description.
func (f *DateFilter) String() string {
	const layout = "2006-01-02 15:04"
	switch {
	case !f.after.IsZero() && !f.before.IsZero():
		return fmt.Sprintf("modified: %s to %s", f.after.Format(layout), f.before.Format(layout))
	case !f.after.IsZero():
		return fmt.Sprintf("modified: on/after %s", f.after.Format(layout))
	case !f.before.IsZero():
		return fmt.Sprintf("modified: before %s", f.before.Format(layout))
	default:
		return "modified: any"
	}
}

// RegexFilter filters entries by key pattern.
type RegexFilter struct {
	pattern *regexp.Regexp
}

// NewRegexFilter creates a regex filter. Returns nil if pattern is empty.
func NewRegexFilter(pattern string) (*RegexFilter, error) {
	if pattern == "" {
		return nil, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegex, err)
	}

	return &RegexFilter{pattern: re}, nil
}

// Match returns true if the entry key matches the regex.
func (f *RegexFilter) Match(e *provider.ObjectEntry) bool {
	return f.pattern.MatchString(e.Key)
}

// String returns a human-readable description.
func (f *RegexFilter) String() string {
	return "key_regex: " + f.pattern.String()
}

// NameFilter tests substrings of the entry name, the key segment after the
// listing delimiter.
type NameFilter struct {
	contains []string
	excludes []string
}

// NewNameFilter returns nil when both lists are empty.
func NewNameFilter(contains, excludes []string) *NameFilter {
	if len(contains) == 0 && len(excludes) == 0 {
		return nil
	}
	return &NameFilter{contains: contains, excludes: excludes}
}

// Match returns true if the name contains one of the wanted values (when any
// are set) and none of the excluded ones.
func (f *NameFilter) Match(e *provider.ObjectEntry) bool {
	name := e.Name()
	for _, s := range f.excludes {
		if strings.Contains(name, s) {
			return false
		}
	}
	if len(f.contains) == 0 {
		return true
	}
	for _, s := range f.contains {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// String returns a human-readable description.
func (f *NameFilter) String() string {
	var parts []string
	if len(f.contains) > 0 {
		parts = append(parts, "name contains: "+strings.Join(f.contains, "|"))
	}
	if len(f.excludes) > 0 {
		parts = append(parts, "name excludes: "+strings.Join(f.excludes, "|"))
	}
	return strings.Join(parts, ", ")
}

// StorageClassFilter keeps entries in one of a set of storage classes.
// Comparison is case-insensitive. An empty class is treated as STANDARD.
type StorageClassFilter struct {
	classes map[string]struct{}
	raw     []string
}

// NewStorageClassFilter returns nil when classes is empty.
func NewStorageClassFilter(classes []string) *StorageClassFilter {
	if len(classes) == 0 {
		return nil
	}
	f := &StorageClassFilter{classes: make(map[string]struct{}, len(classes)), raw: classes}
	for _, c := range classes {
		f.classes[strings.ToUpper(c)] = struct{}{}
	}
	return f
}

// Match returns true if the entry storage class is in the set.
func (f *StorageClassFilter) Match(e *provider.ObjectEntry) bool {
	class := strings.ToUpper(e.StorageClass)
	if class == "" {
		class = "STANDARD"
	}
	_, ok := f.classes[class]
	return ok
}

// String returns a human-readable description.
func (f *StorageClassFilter) String() string {
	return "storage_class: " + strings.Join(f.raw, ",")
}

// CompositeFilter combines filters with AND semantics.
type CompositeFilter struct {
	filters []Filter
}

// NewCompositeFilter creates a composite filter from the given filters.
// Nil filters are ignored. Returns nil if no non-nil filters are given.
func NewCompositeFilter(filters ...Filter) *CompositeFilter {
	var nonNil []Filter
	for _, f := range filters {
		if f != nil && !isNilFilter(f) {
			nonNil = append(nonNil, f)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return &CompositeFilter{filters: nonNil}
}

// isNilFilter catches typed nil pointers returned by the New* constructors.
func isNilFilter(f Filter) bool {
	switch v := f.(type) {
	case *SizeFilter:
		return v == nil
	case *DateFilter:
		return v == nil
	case *RegexFilter:
		return v == nil
	case *NameFilter:
		return v == nil
	case *StorageClassFilter:
		return v == nil
	case *Matcher:
		return v == nil
	case *CompositeFilter:
		return v == nil
	}
	return false
}

// NewFilterFromConfig builds a CompositeFilter from cfg. Age cutoffs are
// computed from now. Returns nil if no filters are configured.
func NewFilterFromConfig(cfg *FilterConfig, now time.Time) (*CompositeFilter, error) {
	if cfg == nil {
		return nil, nil
	}

	sizeFilter, err := NewSizeFilter(cfg.Size)
	if err != nil {
		return nil, err
	}
	dateFilter, err := NewDateFilter(cfg.Modified)
	if err != nil {
		return nil, err
	}
	ageFilter, err := NewAgeFilter(cfg.Age, now)
	if err != nil {
		return nil, err
	}
	regexFilter, err := NewRegexFilter(cfg.KeyRegex)
	if err != nil {
		return nil, err
	}

	return NewCompositeFilter(
		sizeFilter,
		dateFilter,
		ageFilter,
		regexFilter,
		NewNameFilter(cfg.NameContains, cfg.NameExcludes),
		NewStorageClassFilter(cfg.StorageClasses),
	), nil
}

// Match returns true if all filters pass. A nil CompositeFilter matches
// everything.
func (f *CompositeFilter) Match(e *provider.ObjectEntry) bool {
	if f == nil {
		return true
	}
	for _, filter := range f.filters {
		if !filter.Match(e) {
			return false
		}
	}
	return true
}

// String returns a human-readable description.
func (f *CompositeFilter) String() string {
	if f == nil || len(f.filters) == 0 {
		return "no filters"
	}
	parts := make([]string, len(f.filters))
	for i, filter := range f.filters {
		parts[i] = filter.String()
	}
	return strings.Join(parts, ", ")
}

// Filters returns the underlying filters.
func (f *CompositeFilter) Filters() []Filter {
	if f == nil {
		return nil
	}
	return f.filters
}

// MatchVersion applies f to a versions-listing item. Delete markers carry no
// size or storage class, so they are tested as zero-size entries with their
// optional modification time.
func MatchVersion(f Filter, item provider.VersionItem) bool {
	if item.Version != nil {
		return f.Match(item.Version)
	}
	if item.DeleteMarker == nil {
		return false
	}
	e := provider.ObjectEntry{
		Key:       item.DeleteMarker.Key,
		Delimiter: item.DeleteMarker.Delimiter,
	}
	if item.DeleteMarker.LastModified != nil {
		e.LastModified = *item.DeleteMarker.LastModified
	}
	return f.Match(&e)
}
