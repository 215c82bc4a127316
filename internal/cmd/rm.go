package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/observability"
	"github.com/3leaps/s3keeper/pkg/mutate"
	"github.com/3leaps/s3keeper/pkg/provider"
)

var rmCmd = &cobra.Command{
	Use:   "rm <uri>",
	Short: "Delete matching objects in batches",
	Long: `Delete the objects selected by a URI and the selection flags.

Objects are streamed from the listing into multi-delete batches of up to
1000 keys, sent in parallel while the walk continues. Every batch reports
its own outcome; a failed batch does not stop the others.

--until-empty repeats the walk after each round until nothing matches,
which catches objects written while the previous round ran.

--versions deletes stored versions and delete markers instead of current
objects. Combine with --noncurrent-only to keep the latest version of
each key.

Deleting from the bucket root without any selection flag requires --all.

Exit codes:
  0    all matched objects deleted
  64   invalid arguments or readonly mode
  69   storage provider unavailable
  75   some objects could not be deleted
  130  interrupted

Examples:
  s3keeper rm s3://logs/ -R --older-than 90d --name-excludes plex --until-empty
  s3keeper rm s3://logs/2023/ -R --dry-run -o table
  s3keeper rm s3://media/tv/ -R --versions --noncurrent-only`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

var (
	rmRecursive         bool
	rmDryRun            bool
	rmParallel          int
	rmBatchSize         int
	rmMaxObjects        int
	rmVersions          bool
	rmNoncurrentOnly    bool
	rmDeleteMarkersOnly bool
	rmUntilEmpty        bool
	rmMaxRounds         int
	rmQuiet             bool
	rmAll               bool
	rmFilters           filterFlags
)

func init() {
	rootCmd.AddCommand(rmCmd)

	f := rmCmd.Flags()
	f.BoolVarP(&rmRecursive, "recursive", "R", false, "Descend into every folder")
	f.BoolVar(&rmDryRun, "dry-run", false, "Print what would be deleted without deleting")
	f.IntVar(&rmParallel, "parallel", 0, "Concurrent delete requests (default from config)")
	f.IntVar(&rmBatchSize, "batch-size", 0, "Keys per delete request, at most 1000 (default from config)")
	f.IntVar(&rmMaxObjects, "max-objects", 0, "Stop after N matched objects (default from config, 0 = unlimited)")
	f.BoolVar(&rmVersions, "versions", false, "Delete stored versions and delete markers")
	f.BoolVar(&rmNoncurrentOnly, "noncurrent-only", false, "With --versions, keep the latest version of every key")
	f.BoolVar(&rmDeleteMarkersOnly, "delete-markers-only", false, "With --versions, remove delete markers only")
	f.BoolVar(&rmUntilEmpty, "until-empty", false, "Repeat until a round matches nothing")
	f.IntVar(&rmMaxRounds, "max-rounds", 0, "With --until-empty, stop after N rounds (0 = unlimited)")
	f.BoolVar(&rmQuiet, "quiet", false, "Ask the service to report failures only")
	f.BoolVar(&rmAll, "all", false, "Allow deleting from the bucket root without filters")
	rmFilters.register(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uri, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if !rmDryRun {
		if err := requireWritable("rm"); err != nil {
			return err
		}
	}
	if err := validateRmFlags(uri); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid arguments", err)
	}

	limit := rmMaxObjects
	if !cmd.Flags().Changed("max-objects") {
		limit = appConfig.Delete.MaxObjects
	}
	t, err := rmFilters.target(uri, rmRecursive, limit)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filter", err)
	}

	s := settingsFromConfig()
	if rmParallel > 0 {
		s.Parallelism = rmParallel
	}
	if rmBatchSize > 0 {
		s.BatchSize = rmBatchSize
	}
	if rmQuiet {
		s.Quiet = true
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

	opts := deleteOptions{
		DryRun:            rmDryRun,
		UntilEmpty:        rmUntilEmpty,
		MaxRounds:         rmMaxRounds,
		NoncurrentOnly:    rmNoncurrentOnly,
		DeleteMarkersOnly: rmDeleteMarkersOnly,
	}

	var sum mutate.Summary
	if rmVersions {
		sum, err = purgeVersions(ctx, prov, w, t, s, opts)
	} else {
		sum, err = deleteObjects(ctx, prov, w, t, s, opts)
	}
	return deleteExit(uri.String(), sum, err)
}

func validateRmFlags(uri *ObjectURI) error {
	if rmBatchSize > provider.MaxDeleteBatch {
		return fmt.Errorf("--batch-size must be at most %d", provider.MaxDeleteBatch)
	}
	if (rmNoncurrentOnly || rmDeleteMarkersOnly) && !rmVersions {
		return errors.New("--noncurrent-only and --delete-markers-only require --versions")
	}
	if rmUntilEmpty && rmVersions {
		return errors.New("--until-empty cannot be combined with --versions")
	}
	if rmMaxRounds != 0 && !rmUntilEmpty {
		return errors.New("--max-rounds requires --until-empty")
	}
	if uri.Key == "" && !uri.IsPattern() && !rmFilters.narrows() && !rmAll {
		return fmt.Errorf("refusing to delete everything in %s without --all", uri.Bucket)
	}
	return nil
}

// deleteExit maps the outcome of a delete to an exit code.
func deleteExit(where string, sum mutate.Summary, err error) error {
	if err != nil {
		observability.CLILogger.Error("Delete failed", zap.String("uri", where), zap.Error(err))
		return providerExit("Delete failed", err)
	}
	if sum.HasFailures() {
		observability.CLILogger.Warn("Some objects were not deleted",
			zap.Int("deleted", sum.Deleted),
			zap.Int("failed", sum.Failed),
			zap.Error(sum.Err))
		return exitError(ExitPartialFailure, "Delete incomplete",
			fmt.Errorf("%d of %d objects not deleted", sum.Failed, sum.Requested))
	}
	return nil
}
