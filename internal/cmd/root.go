// Package cmd implements the s3keeper command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/config"
	"github.com/3leaps/s3keeper/internal/observability"
)

// Exit codes with no foundry equivalent. Everything else uses
// gofulmen/foundry codes.
const (
	ExitSuccess        = 0
	ExitFailure        = 1
	ExitPartialFailure = 75
)

// ExitError carries a process exit code through cobra's error return.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements error interface.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = VersionInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// AppIdentity names the application for config discovery and logging.
type AppIdentity struct {
	BinaryName string
	EnvPrefix  string
	ConfigName string
}

var appIdentity *AppIdentity

// GetAppIdentity returns the identity set during command initialization,
// or nil before any command has run.
func GetAppIdentity() *AppIdentity {
	return appIdentity
}

var (
	cfgFile      string
	verbose      bool
	readOnly     bool
	outputFormat string
	dumpXML      bool

	appConfig *config.Config
)

// flagKeys maps persistent flags to config keys. A flag only overrides the
// config when it was set on the command line.
var flagKeys = map[string]string{
	"backend":          "backend",
	"region":           "connection.region",
	"endpoint":         "connection.endpoint",
	"profile":          "connection.profile",
	"force-path-style": "connection.force_path_style",
	"timeout":          "connection.timeout",
	"page-size":        "listing.page_size",
	"rate-limit":       "listing.rate_limit",
	"max-pages":        "listing.max_pages",
	"max-buffer":       "listing.max_buffer",
	"delimiter":        "listing.delimiter",
	"log-level":        "logging.level",
	"log-profile":      "logging.profile",
}

var rootCmd = &cobra.Command{
	Use:   "s3keeper",
	Short: "Maintenance utility for S3 and Wasabi buckets",
	Long: `s3keeper lists, measures and cleans up S3-compatible buckets.

It walks folder-structured and versioned key spaces page by page, filters
objects by age, name, size or glob pattern, and deletes or renames them in
bounded batches.

Examples:
  s3keeper ls s3://media/tv/ --recursive --newer-than 24h --sort modified
  s3keeper du s3://logs/ --older-than 90d
  s3keeper rm s3://logs/ --recursive --older-than 90d --name-excludes plex --until-empty
  s3keeper mv wasabi://media/tv/old/ tv/archive/ --prefix
  s3keeper run --job cleanup.yaml`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
	PersistentPostRun: func(*cobra.Command, []string) { observability.Sync() },
}

func init() {
	setDefaults()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/s3keeper/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&readOnly, "readonly", false, "Refuse commands that modify the bucket")
	pf.StringVarP(&outputFormat, "output", "o", formatJSONL, "Output format (jsonl|table)")
	pf.BoolVar(&dumpXML, "dump-xml", false, "Log raw XML responses at debug level (rest backend)")

	pf.String("backend", "", "Provider backend (sdk|rest)")
	pf.String("region", "", "Signing region")
	pf.String("endpoint", "", "Custom S3 endpoint, e.g. https://s3.wasabisys.com")
	pf.String("profile", "", "AWS shared config profile")
	pf.Bool("force-path-style", false, "Use path-style bucket addressing")
	pf.Duration("timeout", 0, "Per-request timeout (0 = none)")
	pf.Int("page-size", 0, "Keys per list request (1-1000)")
	pf.Float64("rate-limit", 0, "Maximum list requests per second (0 = unlimited)")
	pf.Int("max-pages", 0, "Stop each walk after N pages (0 = unlimited)")
	pf.Int("max-buffer", 10000, "Entries held in memory by --sort and glob moves (0 = unlimited)")
	pf.String("delimiter", "/", "Folder delimiter (empty for a flat listing)")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-profile", "", "Log profile (structured|console)")

	_ = viper.BindPFlag("readonly", pf.Lookup("readonly"))
}

// setDefaults seeds the global viper instance with built-in defaults.
func setDefaults() {
	for key, value := range config.Defaults() {
		viper.SetDefault(key, value)
	}
}

// initApp loads configuration and the logger before any command runs.
func initApp(cmd *cobra.Command, _ []string) error {
	appIdentity = &AppIdentity{
		BinaryName: "s3keeper",
		EnvPrefix:  config.EnvPrefix,
		ConfigName: config.AppName,
	}

	config.SetConfigFile(cfgFile)

	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		overrides[key] = flagValue(cmd, flag)
	}

	cfg, err := config.Load(cmd.Context(), nested(overrides))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	appConfig = cfg

	if err := observability.Init("s3keeper", observability.Options{
		Level:   cfg.Logging.Level,
		Profile: cfg.Logging.Profile,
		Verbose: verbose,
	}); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}

	switch outputFormat {
	case formatJSONL, formatTable:
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", fmt.Errorf("unsupported format %q (expected jsonl or table)", outputFormat))
	}

	observability.CLILogger.Debug("Configuration loaded",
		zap.String("backend", cfg.Backend),
		zap.String("endpoint", cfg.Connection.Endpoint),
		zap.String("region", cfg.Connection.Region),
		zap.Bool("readonly", IsReadOnly()))
	return nil
}

// flagValue returns a typed flag value suitable for a config override.
func flagValue(cmd *cobra.Command, name string) any {
	fs := cmd.Flags()
	switch fs.Lookup(name).Value.Type() {
	case "bool":
		v, _ := fs.GetBool(name)
		return v
	case "int":
		v, _ := fs.GetInt(name)
		return v
	case "float64":
		v, _ := fs.GetFloat64(name)
		return v
	case "duration":
		v, _ := fs.GetDuration(name)
		return v
	default:
		v, _ := fs.GetString(name)
		return v
	}
}

// nested turns dotted keys into the nested maps config.Load expects.
func nested(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range flat {
		m := out
		parts := strings.Split(key, ".")
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = value
	}
	return out
}

// IsReadOnly reports whether mutating commands are disabled, via --readonly,
// S3KEEPER_READONLY or the config file.
func IsReadOnly() bool {
	if readOnly || viper.GetBool("readonly") {
		return true
	}
	return appConfig != nil && appConfig.Readonly
}

// requireWritable refuses action in readonly mode.
func requireWritable(action string) error {
	if IsReadOnly() {
		return exitError(foundry.ExitInvalidArgument, "readonly mode enabled: refusing "+action, errors.New("disable --readonly or unset S3KEEPER_READONLY"))
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var ee *ExitError
	if errors.As(err, &ee) {
		fmt.Fprintln(os.Stderr, "Error:", ee.Error())
		return ee.Code
	}
	if errors.Is(err, context.Canceled) {
		return foundry.ExitSignalInt
	}

	// Unclassified errors come from cobra itself: unknown flags, bad args.
	fmt.Fprintln(os.Stderr, "Error:", err)
	return foundry.ExitInvalidArgument
}
