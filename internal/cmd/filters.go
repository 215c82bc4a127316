package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/3leaps/s3keeper/pkg/match"
)

// filterFlags are the selection flags shared by ls, du, rm and versions.
type filterFlags struct {
	includes      []string
	excludes      []string
	excludeHidden bool

	olderThan string
	newerThan string
	after     string
	before    string
	minSize   string
	maxSize   string

	keyRegex       string
	nameContains   []string
	nameExcludes   []string
	storageClasses []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringArrayVar(&f.includes, "include", nil, "Glob pattern relative to the URI prefix (repeatable)")
	fs.StringArrayVar(&f.excludes, "exclude", nil, "Glob pattern to skip, relative to the URI prefix (repeatable)")
	fs.BoolVar(&f.excludeHidden, "exclude-hidden", false, "Skip keys with a path segment starting with '.'")
	fs.StringVar(&f.olderThan, "older-than", "", "Only objects last modified more than this long ago (e.g. 90d, 36h)")
	fs.StringVar(&f.newerThan, "newer-than", "", "Only objects last modified less than this long ago (e.g. 24h)")
	fs.StringVar(&f.after, "after", "", "Only objects modified at or after this date (2024-01-15 or RFC 3339)")
	fs.StringVar(&f.before, "before", "", "Only objects modified before this date")
	fs.StringVar(&f.minSize, "min-size", "", "Minimum object size (e.g. 1KB, 100MiB)")
	fs.StringVar(&f.maxSize, "max-size", "", "Maximum object size")
	fs.StringVar(&f.keyRegex, "key-regex", "", "Regular expression applied to the full key")
	fs.StringSliceVar(&f.nameContains, "name-contains", nil, "Only objects whose name contains one of these values")
	fs.StringSliceVar(&f.nameExcludes, "name-excludes", nil, "Skip objects whose name contains one of these values")
	fs.StringSliceVar(&f.storageClasses, "storage-class", nil, "Only objects in these storage classes")
}

// filterConfig returns the attribute filters, or nil when none are set.
func (f *filterFlags) filterConfig() *match.FilterConfig {
	cfg := &match.FilterConfig{
		KeyRegex:       f.keyRegex,
		NameContains:   f.nameContains,
		NameExcludes:   f.nameExcludes,
		StorageClasses: f.storageClasses,
	}
	if f.olderThan != "" || f.newerThan != "" {
		cfg.Age = &match.AgeFilterConfig{OlderThan: f.olderThan, NewerThan: f.newerThan}
	}
	if f.after != "" || f.before != "" {
		cfg.Modified = &match.DateFilterConfig{After: f.after, Before: f.before}
	}
	if f.minSize != "" || f.maxSize != "" {
		cfg.Size = &match.SizeFilterConfig{Min: f.minSize, Max: f.maxSize}
	}
	if cfg.Age == nil && cfg.Modified == nil && cfg.Size == nil && cfg.KeyRegex == "" &&
		len(cfg.NameContains) == 0 && len(cfg.NameExcludes) == 0 && len(cfg.StorageClasses) == 0 {
		return nil
	}
	return cfg
}

// narrows reports whether any selection flag was given.
func (f *filterFlags) narrows() bool {
	return len(f.includes) > 0 || len(f.excludes) > 0 || f.excludeHidden || f.filterConfig() != nil
}

// target builds the key space selected by uri and the flags.
func (f *filterFlags) target(uri *ObjectURI, recursive bool, limit int) (target, error) {
	mc := match.Config{ExcludeHidden: f.excludeHidden}
	if uri.IsPattern() {
		mc.Includes = append(mc.Includes, uri.Pattern)
	}
	for _, p := range f.includes {
		mc.Includes = append(mc.Includes, uri.Key+p)
	}
	for _, p := range f.excludes {
		mc.Excludes = append(mc.Excludes, uri.Key+p)
	}
	return newTarget(uri.Key, appConfig.Listing.Delimiter, recursive, limit, mc, f.filterConfig(), time.Now())
}

// newTarget compiles a selection. Include patterns may span folders, so a
// target with patterns lists flat under its literal prefix.
func newTarget(prefix, delimiter string, recursive bool, limit int, mc match.Config, fc *match.FilterConfig, now time.Time) (target, error) {
	matcher, err := match.New(mc)
	if err != nil {
		return target{}, err
	}
	attrs, err := match.NewFilterFromConfig(fc, now)
	if err != nil {
		return target{}, err
	}

	t := target{
		Prefix:    prefix,
		Delimiter: delimiter,
		Recursive: recursive,
		Limit:     limit,
		filter:    match.NewCompositeFilter(matcher, attrs),
	}
	if len(mc.Includes) > 0 {
		t.Prefix = matcher.ListPrefix()
		t.Delimiter = ""
		t.Recursive = false
	}
	return t, nil
}
