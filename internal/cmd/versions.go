package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/observability"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <uri>",
	Short: "List object versions and delete markers",
	Long: `List the stored versions and delete markers under a prefix of a
versioned bucket, in the order the service returns them.

Examples:
  s3keeper versions s3://media/tv/ -R --noncurrent-only
  s3keeper versions s3://logs/app.log --delete-markers-only`,
	Args: cobra.ExactArgs(1),
	RunE: runVersions,
}

var (
	versionsRecursive         bool
	versionsLimit             int
	versionsNoncurrentOnly    bool
	versionsDeleteMarkersOnly bool
	versionsFilters           filterFlags
)

func init() {
	rootCmd.AddCommand(versionsCmd)

	versionsCmd.Flags().BoolVarP(&versionsRecursive, "recursive", "R", false, "Include keys in sub-folders")
	versionsCmd.Flags().IntVar(&versionsLimit, "limit", 0, "Stop after N matching items (0 = unlimited)")
	versionsCmd.Flags().BoolVar(&versionsNoncurrentOnly, "noncurrent-only", false, "Skip the latest version of every key")
	versionsCmd.Flags().BoolVar(&versionsDeleteMarkersOnly, "delete-markers-only", false, "List delete markers only")
	versionsFilters.register(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uri, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	t, err := versionsFilters.target(uri, versionsRecursive, versionsLimit)
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

	_, err = listVersions(ctx, prov, w, t, settingsFromConfig(), deleteOptions{
		NoncurrentOnly:    versionsNoncurrentOnly,
		DeleteMarkersOnly: versionsDeleteMarkersOnly,
	})
	if err != nil {
		observability.CLILogger.Error("Version listing failed", zap.String("uri", uri.String()), zap.Error(err))
		return providerExit("Version listing failed", err)
	}
	return nil
}
