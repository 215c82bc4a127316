package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/observability"
	"github.com/3leaps/s3keeper/pkg/output"
	"github.com/3leaps/s3keeper/pkg/provider"
	"github.com/3leaps/s3keeper/pkg/walker"
)

var lsCmd = &cobra.Command{
	Use:   "ls <uri>",
	Short: "List objects under a prefix",
	Long: `List objects under a bucket prefix.

Without --recursive only the objects directly under the prefix are listed;
use --folders to also print the sub-folders found there. A glob URI
(s3://bucket/logs/**/*.gz) lists every key under its literal prefix and keeps
the matching ones.

Output is JSONL by default; use -o table for a human-readable listing.

Examples:
  s3keeper ls s3://media/tv/ --folders
  s3keeper ls wasabi://media/tv/ -R --newer-than 24h --sort modified --reverse
  s3keeper ls s3://logs/ -R --name-excludes plex --limit 100`,
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

var (
	lsRecursive bool
	lsFolders   bool
	lsLimit     int
	lsSort      string
	lsReverse   bool
	lsFilters   filterFlags
)

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "R", false, "Descend into every folder")
	lsCmd.Flags().BoolVar(&lsFolders, "folders", false, "Also list folders (common prefixes)")
	lsCmd.Flags().IntVar(&lsLimit, "limit", 0, "Stop after N matching objects (0 = unlimited)")
	lsCmd.Flags().StringVar(&lsSort, "sort", "", "Sort objects by key, modified or size (buffers the listing)")
	lsCmd.Flags().BoolVar(&lsReverse, "reverse", false, "Reverse the sort order")
	lsFilters.register(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uri, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	switch lsSort {
	case "", "key", "modified", "size":
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid --sort value", fmt.Errorf("unsupported sort %q (expected key, modified or size)", lsSort))
	}

	t, err := lsFilters.target(uri, lsRecursive, lsLimit)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filter", err)
	}

	prov, err := connect(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	w, cleanup, err := createWriter(outputFormat, "stdout", newJobID(), uri.Bucket)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to create output writer", err)
	}
	defer cleanup()

	s := settingsFromConfig()
	if lsSort != "" {
		err = listSorted(ctx, prov, w, t, s)
	} else {
		_, _, err = scanObjects(ctx, prov, w, t, s, scanOptions{Folders: lsFolders})
	}
	if err != nil {
		observability.CLILogger.Error("Listing failed", zap.String("uri", uri.String()), zap.Error(err))
		return providerExit("Listing failed", err)
	}
	return nil
}

// listSorted buffers the selected entries, sorts them and writes them.
// The limit applies after sorting, so "--sort modified --reverse --limit 10"
// yields the ten most recent objects.
func listSorted(ctx context.Context, lister provider.Lister, w output.Writer, t target, s settings) error {
	pager := walker.NewBucketWalker(lister, s.walkOptions(t))
	entries, capped, err := walker.CollectEntries(ctx, pager, walker.EntryFilter(t.Match), s.MaxBuffer)
	truncated := capped || errors.Is(err, walker.ErrMaxPages)
	if err != nil && !errors.Is(err, walker.ErrMaxPages) {
		return err
	}
	if capped {
		observability.CLILogger.Warn("Sort buffer full, sorting a partial listing",
			zap.Int("max_buffer", s.MaxBuffer))
	}

	sortEntries(entries, lsSort, lsReverse)
	if t.Limit > 0 && len(entries) > t.Limit {
		entries = entries[:t.Limit]
		truncated = true
	}

	var bytes int64
	for i := range entries {
		bytes += entries[i].Size
		if err := w.WriteObject(ctx, output.NewObjectRecord(&entries[i])); err != nil {
			return err
		}
	}
	return w.WriteSummary(ctx, &output.SummaryRecord{
		ObjectsFound:   int64(len(entries)),
		ObjectsMatched: int64(len(entries)),
		BytesMatched:   bytes,
		Pages:          pager.Pages(),
		Truncated:      truncated,
	})
}

func sortEntries(entries []provider.ObjectEntry, by string, reverse bool) {
	less := func(a, b *provider.ObjectEntry) bool { return a.Key < b.Key }
	switch by {
	case "modified":
		less = func(a, b *provider.ObjectEntry) bool {
			if a.LastModified.Equal(b.LastModified) {
				return a.Key < b.Key
			}
			return a.LastModified.Before(b.LastModified)
		}
	case "size":
		less = func(a, b *provider.ObjectEntry) bool {
			if a.Size == b.Size {
				return a.Key < b.Key
			}
			return a.Size < b.Size
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if reverse {
			return less(&entries[j], &entries[i])
		}
		return less(&entries[i], &entries[j])
	})
}
