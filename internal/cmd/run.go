package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/observability"
	"github.com/3leaps/s3keeper/pkg/manifest"
	"github.com/3leaps/s3keeper/pkg/match"
	"github.com/3leaps/s3keeper/pkg/output"
	"github.com/3leaps/s3keeper/pkg/provider"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a maintenance job from a manifest",
	Long: `Run the tasks of a YAML or JSON job manifest in order.

The manifest names the bucket and connection, listing and delete tuning,
the output destination, and a list of tasks (list, du, delete,
purge-versions, move). The first failing task stops the job.

Example:
  s3keeper run --job cleanup.yaml
  s3keeper run --job cleanup.yaml --dry-run
  s3keeper run --job cleanup.yaml --plan
  s3keeper run --job cleanup.yaml --dest file:cleanup.jsonl`,
	Args: cobra.NoArgs,
	RunE: runJob,
}

var (
	runJobPath string
	runDest    string
	runDryRun  bool
	runPlan    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runJobPath, "job", "j", "", "Path to job manifest (required)")
	runCmd.Flags().StringVar(&runDest, "dest", "", "Override output destination (stdout or file:<path>)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Run every task without deleting or moving anything")
	runCmd.Flags().BoolVar(&runPlan, "plan", false, "Validate the manifest and print the plan without connecting")

	_ = runCmd.MarkFlagRequired("job")
}

func runJob(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(runJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", runJobPath),
			zap.Error(err))
		if errors.Is(err, fs.ErrNotExist) {
			return exitError(foundry.ExitFileNotFound, "Manifest not found", err)
		}
		if errors.Is(err, fs.ErrPermission) {
			return exitError(foundry.ExitFileReadError, "Cannot read manifest", err)
		}
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", runJobPath),
		zap.String("bucket", m.Connection.Bucket),
		zap.Int("tasks", len(m.Tasks)))

	if runDest != "" {
		m.Output.Destination = runDest
	}
	if cmd.Flags().Changed("output") {
		m.Output.Format = outputFormat
	}

	if runPlan {
		return showPlan(cmd.OutOrStdout(), m)
	}
	if m.Mutates() && !runDryRun {
		if err := requireWritable("mutating job " + runJobPath); err != nil {
			return err
		}
	}

	return executeJob(ctx, m, runDryRun)
}

// showPlan prints what the job would do.
func showPlan(out io.Writer, m *manifest.Manifest) error {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }

	p("=== Job Plan ===\n\n")
	p("Bucket:      %s\n", m.Connection.Bucket)
	p("Backend:     %s\n", m.Connection.Backend)
	if m.Connection.Region != "" {
		p("Region:      %s\n", m.Connection.Region)
	}
	if m.Connection.Endpoint != "" {
		p("Endpoint:    %s\n", m.Connection.Endpoint)
	}
	p("Output:      %s (%s)\n\n", m.Output.Destination, m.Output.Format)

	for i, t := range m.Tasks {
		p("%d. %s [%s]\n", i+1, t.Name, t.Action)
		p("   prefix:    %q (recursive=%v)\n", t.Prefix, t.Recursive)
		if t.Match != nil {
			if len(t.Match.Includes) > 0 {
				p("   include:   %s\n", strings.Join(t.Match.Includes, ", "))
			}
			if len(t.Match.Excludes) > 0 {
				p("   exclude:   %s\n", strings.Join(t.Match.Excludes, ", "))
			}
		}
		if t.Filters != nil {
			if f, err := match.NewFilterFromConfig(t.Filters, time.Now()); err == nil && f != nil {
				p("   filters:   %s\n", f.String())
			}
		}
		if t.Limit > 0 {
			p("   limit:     %d\n", t.Limit)
		}
		if t.UntilEmpty {
			p("   rounds:    until empty (max %d)\n", t.MaxRounds)
		}
		if t.Move != nil {
			p("   move to:   %s (%s, overwrite=%v)\n", t.Move.Destination, t.Move.Mode, t.Move.Overwrite)
		}
	}
	p("\nManifest validated successfully. Remove --plan to execute.\n")
	return nil
}

// manifestSettings overlays the manifest tuning on the loaded config.
func manifestSettings(m *manifest.Manifest) settings {
	s := settingsFromConfig()
	if m.Listing.PageSize > 0 {
		s.PageSize = m.Listing.PageSize
	}
	if m.Listing.VersionPageSize > 0 {
		s.VersionPageSize = m.Listing.VersionPageSize
	}
	if m.Listing.RateLimit > 0 {
		s.RateLimit = m.Listing.RateLimit
	}
	if m.Listing.MaxPages > 0 {
		s.MaxPages = m.Listing.MaxPages
	}
	if m.Delete.BatchSize > 0 {
		s.BatchSize = m.Delete.BatchSize
	}
	if m.Delete.Parallelism > 0 {
		s.Parallelism = m.Delete.Parallelism
	}
	if m.Delete.Quiet {
		s.Quiet = true
	}
	return s.withLimiter()
}

// manifestConnection overlays the manifest connection on the loaded config.
func manifestConnection(m *manifest.Manifest) connection {
	conn := resolveConnection(&ObjectURI{Scheme: SchemeS3, Bucket: m.Connection.Bucket})
	c := m.Connection
	conn.Backend = c.Backend
	if c.Region != "" {
		conn.S3.Region = c.Region
	}
	if c.Endpoint != "" {
		conn.S3.Endpoint = c.Endpoint
	}
	if c.Profile != "" {
		conn.S3.Profile = c.Profile
	}
	if c.ForcePathStyle {
		conn.S3.ForcePathStyle = true
	}
	return conn
}

// executeJob runs the manifest tasks in order.
func executeJob(ctx context.Context, m *manifest.Manifest, dryRun bool) error {
	jobID := newJobID()
	conn := manifestConnection(m)
	s := manifestSettings(m)

	var (
		prov provider.Provider
		err  error
	)
	if hasAction(m, manifest.ActionMove) {
		// The MOVE backend serves every task of the job.
		prov, err = openMover(ctx, conn)
	} else {
		prov, err = providerFactory(ctx, conn)
	}
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return providerExit("Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	w, cleanup, err := createWriter(m.Output.Format, m.Output.Destination, jobID, m.Connection.Bucket)
	if err != nil {
		observability.CLILogger.Error("Failed to create writer", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	observability.CLILogger.Info("Starting job",
		zap.String("job_id", jobID),
		zap.String("bucket", m.Connection.Bucket),
		zap.Int("tasks", len(m.Tasks)),
		zap.Bool("dry_run", dryRun))

	incomplete := 0
	for i := range m.Tasks {
		task := &m.Tasks[i]
		log := observability.CLILogger.With(zap.String("task", task.Name), zap.String("action", task.Action))
		log.Info("Running task")

		failed, err := executeTask(ctx, prov, w, task, s, dryRun)
		if err != nil {
			if ctx.Err() != nil {
				log.Warn("Job cancelled")
				return exitError(foundry.ExitSignalInt, "Job cancelled", err)
			}
			log.Error("Task failed", zap.Error(err))
			var ee *ExitError
			if errors.As(err, &ee) {
				return err
			}
			return providerExit(fmt.Sprintf("Task %q failed", task.Name), err)
		}
		if failed > 0 {
			log.Warn("Task incomplete", zap.Int("failed", failed))
			incomplete++
		}
	}

	if incomplete > 0 {
		return exitError(ExitPartialFailure, "Job incomplete", fmt.Errorf("%d of %d tasks had failures", incomplete, len(m.Tasks)))
	}
	observability.CLILogger.Info("Job completed", zap.String("job_id", jobID))
	return nil
}

func hasAction(m *manifest.Manifest, action string) bool {
	for _, t := range m.Tasks {
		if t.Action == action {
			return true
		}
	}
	return false
}

// executeTask runs one task and returns the number of objects or renames
// that failed.
func executeTask(ctx context.Context, prov provider.Provider, w output.Writer, task *manifest.Task, s settings, dryRun bool) (int, error) {
	t, err := newTarget(task.Prefix, task.DelimiterOrDefault(), task.Recursive, task.Limit,
		task.MatcherConfig(), task.Filters, time.Now())
	if err != nil {
		return 0, exitError(foundry.ExitInvalidArgument, "Invalid task selection", err)
	}

	switch task.Action {
	case manifest.ActionList:
		_, _, err = scanObjects(ctx, prov, w, t, s, scanOptions{Folders: !task.Recursive})
		return 0, err

	case manifest.ActionDU:
		var cutoff time.Time
		if task.Cutoff != "" {
			age, err := match.ParseAge(task.Cutoff)
			if err != nil {
				return 0, exitError(foundry.ExitInvalidArgument, "Invalid cutoff", err)
			}
			cutoff = time.Now().Add(-age)
		}
		t.Recursive = t.Delimiter != ""
		_, _, err = scanObjects(ctx, prov, w, t, s, scanOptions{SummaryOnly: true, Cutoff: cutoff})
		return 0, err

	case manifest.ActionDelete:
		sum, err := deleteObjects(ctx, prov, w, t, s, deleteOptions{
			DryRun:     dryRun,
			UntilEmpty: task.UntilEmpty,
			MaxRounds:  task.MaxRounds,
		})
		return sum.Failed, err

	case manifest.ActionPurgeVersions:
		sum, err := purgeVersions(ctx, prov, w, t, s, deleteOptions{
			DryRun:            dryRun,
			NoncurrentOnly:    task.NoncurrentOnly,
			DeleteMarkersOnly: task.DeleteMarkersOnly,
		})
		return sum.Failed, err

	case manifest.ActionMove:
		mover, ok := prov.(provider.Mover)
		if !ok {
			return 0, fmt.Errorf("%w: move", provider.ErrUnsupported)
		}
		prefixMode := task.Move.Mode == "prefix"
		ops, _, err := planMoves(ctx, prov, t, task.Prefix, task.Move.Destination, prefixMode, false, task.Move.Overwrite, s)
		if err != nil {
			return 0, err
		}
		return moveObjects(ctx, mover, w, ops, s.Parallelism, dryRun)
	}
	return 0, fmt.Errorf("unknown action %q", task.Action)
}
