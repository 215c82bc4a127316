package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/observability"
)

var mvCmd = &cobra.Command{
	Use:   "mv <source-uri> <destination>",
	Short: "Rename objects server-side (Wasabi)",
	Long: `Rename an object or a whole prefix without copying data, using the
Wasabi MOVE extension. AWS S3 does not support this operation.

The destination is a key in the same bucket, given either as a bare key or
as a URI. A source ending in "/" (or --prefix) renames every key under that
prefix in a single request. A glob source renames each matching key,
keeping its path relative to the literal prefix.

Examples:
  s3keeper mv wasabi://media/tv/old/ tv/archive/
  s3keeper mv wasabi://media/tv/show/ep1.mkv tv/show/s01e01.mkv --overwrite
  s3keeper mv 'wasabi://media/inbox/*.mkv' tv/unsorted/ --dry-run`,
	Args: cobra.ExactArgs(2),
	RunE: runMv,
}

var (
	mvPrefix    bool
	mvOverwrite bool
	mvDryRun    bool
	mvParallel  int
)

func init() {
	rootCmd.AddCommand(mvCmd)

	mvCmd.Flags().BoolVar(&mvPrefix, "prefix", false, "Treat the source as a key prefix")
	mvCmd.Flags().BoolVar(&mvOverwrite, "overwrite", false, "Replace existing objects at the destination")
	mvCmd.Flags().BoolVar(&mvDryRun, "dry-run", false, "Print the planned renames without running them")
	mvCmd.Flags().IntVar(&mvParallel, "parallel", 0, "Concurrent renames for glob sources (default from config)")
}

func runMv(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	src, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid source URI", err)
	}
	if !mvDryRun {
		if err := requireWritable("mv"); err != nil {
			return err
		}
	}
	dest, err := moveDestination(src, args[1])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid destination", err)
	}
	if src.Key == "" && !src.IsPattern() {
		return exitError(foundry.ExitInvalidArgument, "Invalid source", fmt.Errorf("refusing to move the bucket root of %s", src.Bucket))
	}

	prefixMode := mvPrefix || src.IsPrefix()
	if prefixMode && !src.IsPattern() && !strings.HasSuffix(dest, "/") {
		dest += "/"
	}

	var t target
	if src.IsPattern() {
		var noFilters filterFlags
		if t, err = noFilters.target(src, false, 0); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid source pattern", err)
		}
	}

	mover, err := openMover(ctx, resolveConnection(src))
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return providerExit("Failed to connect to storage provider", err)
	}
	defer func() { _ = mover.Close() }()

	w, cleanup, err := createWriter(outputFormat, "stdout", newJobID(), src.Bucket)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to create output writer", err)
	}
	defer cleanup()

	s := settingsFromConfig()
	if mvParallel > 0 {
		s.Parallelism = mvParallel
	}

	ops, truncated, err := planMoves(ctx, mover, t, src.Key, dest, prefixMode, src.IsPattern(), mvOverwrite, s)
	if err != nil {
		observability.CLILogger.Error("Failed to list move sources", zap.Error(err))
		return providerExit("Failed to list move sources", err)
	}
	if truncated {
		observability.CLILogger.Warn("Move source buffer full, renaming the first matches only",
			zap.Int("max_buffer", s.MaxBuffer), zap.Int("planned", len(ops)))
	}

	failed, err := moveObjects(ctx, mover, w, ops, s.Parallelism, mvDryRun)
	if err != nil {
		return providerExit("Move failed", err)
	}
	if failed > 0 {
		return exitError(ExitPartialFailure, "Move incomplete", fmt.Errorf("%d of %d renames failed", failed, len(ops)))
	}
	if truncated {
		return exitError(ExitPartialFailure, "Move incomplete", fmt.Errorf("more than %d keys matched; rerun to move the rest", s.MaxBuffer))
	}
	return nil
}

// moveDestination resolves the destination argument to a key in the source
// bucket.
func moveDestination(src *ObjectURI, arg string) (string, error) {
	if !strings.Contains(arg, "://") {
		if arg == "" {
			return "", errors.New("destination key is required")
		}
		return arg, nil
	}
	dst, err := ParseURI(arg)
	if err != nil {
		return "", err
	}
	if dst.Bucket != src.Bucket {
		return "", fmt.Errorf("cannot move across buckets (%s to %s)", src.Bucket, dst.Bucket)
	}
	if dst.IsPattern() {
		return "", errors.New("destination must not be a pattern")
	}
	if dst.Key == "" {
		return "", errors.New("destination key is required")
	}
	return dst.Key, nil
}
