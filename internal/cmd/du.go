package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/observability"
	"github.com/3leaps/s3keeper/pkg/match"
)

var duCmd = &cobra.Command{
	Use:   "du <uri>",
	Short: "Summarize object count and size under a prefix",
	Long: `Summarize the objects under a prefix: total count and bytes, a split
into old and recent objects, and a breakdown by storage class.

du always descends into folders. --cutoff sets the age that separates old
from recent objects; the selection flags narrow what is counted.

Examples:
  s3keeper du s3://logs/ --cutoff 90d
  s3keeper du wasabi://media/tv/ --name-excludes plex -o table`,
	Args: cobra.ExactArgs(1),
	RunE: runDu,
}

var (
	duCutoff  string
	duFilters filterFlags
)

func init() {
	rootCmd.AddCommand(duCmd)

	duCmd.Flags().StringVar(&duCutoff, "cutoff", "", "Split totals at this age (e.g. 90d)")
	duFilters.register(duCmd)
}

func runDu(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uri, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}

	var cutoff time.Time
	if duCutoff != "" {
		age, err := match.ParseAge(duCutoff)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --cutoff", err)
		}
		cutoff = time.Now().Add(-age)
	}

	t, err := duFilters.target(uri, true, 0)
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

	summary, totals, err := scanObjects(ctx, prov, w, t, settingsFromConfig(), scanOptions{
		SummaryOnly: true,
		Cutoff:      cutoff,
	})
	if err != nil {
		observability.CLILogger.Error("Usage scan failed", zap.String("uri", uri.String()), zap.Error(err))
		return providerExit("Usage scan failed", err)
	}

	observability.CLILogger.Debug("Usage scan complete",
		zap.Int64("objects", totals.All.Count),
		zap.Int64("bytes", totals.All.Bytes),
		zap.Int64("pages", summary.Pages))
	return nil
}
