package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/internal/observability"
	"github.com/3leaps/s3keeper/pkg/provider"
	"github.com/3leaps/s3keeper/pkg/provider/rest"
	providers3 "github.com/3leaps/s3keeper/pkg/provider/s3"
)

// Backend names accepted by --backend and the backend config key.
const (
	backendSDK  = "sdk"
	backendREST = "rest"
)

// connection is the resolved target of a command: one bucket plus the
// credentials and endpoint to reach it.
type connection struct {
	Backend string
	S3      providers3.Config
}

// resolveConnection merges the loaded config with a parsed URI. A wasabi://
// URI selects the regional Wasabi endpoint when none is configured.
func resolveConnection(uri *ObjectURI) connection {
	cfg := appConfig
	conn := connection{
		Backend: cfg.Backend,
		S3: providers3.Config{
			Bucket:          uri.Bucket,
			Region:          cfg.Connection.Region,
			Endpoint:        cfg.Connection.Endpoint,
			Profile:         cfg.Connection.Profile,
			AccessKeyID:     cfg.Connection.AccessKeyID,
			SecretAccessKey: cfg.Connection.SecretAccessKey,
			ForcePathStyle:  cfg.Connection.ForcePathStyle,
			MaxKeys:         cfg.Listing.PageSize,
			VersionPageSize: cfg.Listing.VersionPageSize,
			Timeout:         cfg.Connection.Timeout,
		},
	}
	if uri.IsWasabi() && conn.S3.Endpoint == "" {
		conn.S3.Endpoint = providers3.WasabiEndpoint(conn.S3.Region)
	}
	return conn
}

// providerFactory opens the backend for a connection. Tests replace it with
// an in-memory bucket.
var providerFactory = openProvider

// openProvider creates the configured backend.
func openProvider(ctx context.Context, conn connection) (provider.Provider, error) {
	switch conn.Backend {
	case "", backendSDK:
		p, err := providers3.New(ctx, conn.S3)
		if err != nil {
			return nil, err
		}
		return p, nil
	case backendREST:
		p, err := openREST(ctx, conn)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (expected sdk or rest)", conn.Backend)
	}
}

func openREST(ctx context.Context, conn connection) (*rest.Provider, error) {
	opts := rest.Options{
		Logger:  observability.CLILogger.Named("rest"),
		DumpXML: dumpXML,
	}
	if conn.S3.Timeout > 0 {
		opts.HTTPClient = &http.Client{Timeout: conn.S3.Timeout}
	}
	return rest.New(ctx, conn.S3, opts)
}

// moverProvider is a backend that can also rename objects.
type moverProvider interface {
	provider.Provider
	provider.Mover
}

// openMover opens a backend that supports MOVE. The SDK cannot send MOVE,
// so the rest backend is used regardless of configuration.
func openMover(ctx context.Context, conn connection) (moverProvider, error) {
	if conn.Backend != backendREST {
		observability.CLILogger.Debug("Using rest backend for MOVE", zap.String("configured", conn.Backend))
	}
	conn.Backend = backendREST
	prov, err := providerFactory(ctx, conn)
	if err != nil {
		return nil, err
	}
	m, ok := prov.(moverProvider)
	if !ok {
		_ = prov.Close()
		return nil, fmt.Errorf("%w: move", provider.ErrUnsupported)
	}
	return m, nil
}

// connect opens the provider for uri, mapping failures to exit codes.
func connect(ctx context.Context, uri *ObjectURI) (provider.Provider, error) {
	prov, err := providerFactory(ctx, resolveConnection(uri))
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return nil, providerExit("Failed to connect to storage provider", err)
	}
	return prov, nil
}

// providerExit maps a provider error to an exit code.
func providerExit(message string, err error) error {
	var cfgErr *providers3.ConfigError
	switch {
	case errors.Is(err, context.Canceled):
		return exitError(foundry.ExitSignalInt, "Interrupted", err)
	case errors.As(err, &cfgErr):
		return exitError(foundry.ExitInvalidArgument, message, err)
	case errors.Is(err, provider.ErrUnsupported):
		return exitError(foundry.ExitInvalidArgument, message, err)
	default:
		return exitError(foundry.ExitExternalServiceUnavailable, message, err)
	}
}
