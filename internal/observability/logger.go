// Package observability owns the process-wide CLI logger.
//
// Logs go to stderr so stdout stays reserved for JSONL records.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	// ProfileStructured writes one JSON object per line.
	ProfileStructured = "structured"

	// ProfileConsole writes human-readable lines.
	ProfileConsole = "console"
)

// CLILogger is the logger used by commands. It discards everything until
// InitCLILogger or Init is called.
var CLILogger = zap.NewNop()

// Options configures the CLI logger.
type Options struct {
	// Level is debug, info, warn or error. Default info.
	Level string

	// Profile is ProfileStructured or ProfileConsole. Default structured.
	Profile string

	// Verbose forces debug level.
	Verbose bool

	// Output receives log lines. Default stderr.
	Output zapcore.WriteSyncer
}

// NewCLILogger builds a logger named after the service.
func NewCLILogger(name string, opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = lvl
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Profile) {
	case "", ProfileStructured:
		enc = zapcore.NewJSONEncoder(encCfg)
	case ProfileConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log profile %q (expected %s or %s)", opts.Profile, ProfileStructured, ProfileConsole)
	}

	out := opts.Output
	if out == nil {
		out = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(enc, out, level)
	return zap.New(core, zap.AddCaller()).Named(name), nil
}

// Init replaces CLILogger.
func Init(name string, opts Options) error {
	logger, err := NewCLILogger(name, opts)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// InitCLILogger replaces CLILogger with a structured stderr logger at info,
// or debug when verbose is set.
func InitCLILogger(name string, verbose bool) {
	// Default options cannot fail.
	_ = Init(name, Options{Verbose: verbose})
}

// Sync flushes buffered log entries.
func Sync() {
	_ = CLILogger.Sync()
}
