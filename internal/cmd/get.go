package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/observability"
	"github.com/3leaps/s3keeper/pkg/match"
	"github.com/3leaps/s3keeper/pkg/provider"
)

var getCmd = &cobra.Command{
	Use:   "get <uri>",
	Short: "Download one object",
	Long: `Download one object to stdout or a file.

--range accepts an HTTP byte range ("0-1023", "1024-" or "-512"). The
conditional flags are sent as request headers; an unmodified object under
--if-none-match or --if-modified-since is not an error and writes nothing.

Examples:
  s3keeper get s3://logs/app.log --range -4096
  s3keeper get s3://media/tv/ep1.nfo --out ep1.nfo --if-modified-since 2024-06-01`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var (
	getOut               string
	getRange             string
	getVersionID         string
	getIfMatch           string
	getIfNoneMatch       string
	getIfModifiedSince   string
	getIfUnmodifiedSince string
)

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringVar(&getOut, "out", "", "Write the object to this file instead of stdout")
	getCmd.Flags().StringVar(&getRange, "range", "", "Byte range, e.g. 0-1023, 1024- or -512")
	getCmd.Flags().StringVar(&getVersionID, "version-id", "", "Fetch a specific version")
	getCmd.Flags().StringVar(&getIfMatch, "if-match", "", "Only if the ETag matches")
	getCmd.Flags().StringVar(&getIfNoneMatch, "if-none-match", "", "Only if the ETag differs")
	getCmd.Flags().StringVar(&getIfModifiedSince, "if-modified-since", "", "Only if modified after this date")
	getCmd.Flags().StringVar(&getIfUnmodifiedSince, "if-unmodified-since", "", "Only if not modified after this date")
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uri, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if uri.IsPattern() || uri.IsPrefix() {
		return exitError(foundry.ExitInvalidArgument, "get requires an exact object key",
			fmt.Errorf("provide an object URI without glob or trailing '/': %s", args[0]))
	}

	opts, err := getOptions(uri.Key)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid arguments", err)
	}

	prov, err := connect(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	res, err := prov.GetObject(ctx, opts)
	switch {
	case errors.Is(err, provider.ErrNotModified):
		observability.CLILogger.Info("Object not modified", zap.String("key", uri.Key))
		return nil
	case errors.Is(err, provider.ErrPreconditionFailed):
		return exitError(ExitFailure, "Precondition failed", err)
	case provider.IsNotFound(err):
		return exitError(ExitFailure, "Object not found", err)
	case err != nil:
		observability.CLILogger.Error("Get failed", zap.String("uri", uri.String()), zap.Error(err))
		return providerExit("Get failed", err)
	}
	defer func() { _ = res.Body.Close() }()

	var dst io.Writer = cmd.OutOrStdout()
	if getOut != "" {
		f, err := os.Create(getOut)
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to create output file", err)
		}
		defer func() { _ = f.Close() }()
		dst = f
	}

	n, err := io.Copy(dst, res.Body)
	if err != nil {
		if ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Interrupted", ctx.Err())
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Download failed", err)
	}
	if res.ContentLength > 0 && n != res.ContentLength {
		return exitError(foundry.ExitExternalServiceUnavailable, "Download incomplete",
			fmt.Errorf("received %d of %d bytes", n, res.ContentLength))
	}

	observability.CLILogger.Debug("Object downloaded",
		zap.String("key", uri.Key),
		zap.Int64("bytes", n),
		zap.String("etag", res.ETag),
		zap.String("content_range", res.ContentRange),
		zap.String("version_id", res.VersionID))
	return nil
}

func getOptions(key string) (provider.GetObjectOptions, error) {
	opts := provider.GetObjectOptions{
		Key:         key,
		VersionID:   getVersionID,
		IfMatch:     getIfMatch,
		IfNoneMatch: getIfNoneMatch,
	}
	if getRange != "" {
		r, err := parseRange(getRange)
		if err != nil {
			return opts, err
		}
		opts.Range = r
	}

	var err error
	if opts.IfModifiedSince, err = optionalDate(getIfModifiedSince); err != nil {
		return opts, fmt.Errorf("--if-modified-since: %w", err)
	}
	if opts.IfUnmodifiedSince, err = optionalDate(getIfUnmodifiedSince); err != nil {
		return opts, fmt.Errorf("--if-unmodified-since: %w", err)
	}
	return opts, nil
}

// parseRange accepts "start-end", "start-" and "-suffix", with or without a
// leading "bytes=".
func parseRange(s string) (string, error) {
	spec := strings.TrimPrefix(s, "bytes=")
	first, last, ok := strings.Cut(spec, "-")
	if !ok || (first == "" && last == "") {
		return "", fmt.Errorf("invalid range %q", s)
	}
	start, err := parseOffset(first)
	if err != nil {
		return "", fmt.Errorf("invalid range %q", s)
	}
	end, err := parseOffset(last)
	if err != nil {
		return "", fmt.Errorf("invalid range %q", s)
	}
	if first != "" && last != "" && start > end {
		return "", fmt.Errorf("invalid range %q: start after end", s)
	}
	return "bytes=" + spec, nil
}

func parseOffset(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return match.ParseDate(s)
}
