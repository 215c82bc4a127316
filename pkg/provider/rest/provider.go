// Package rest implements the provider interfaces over raw SigV4-signed HTTP
// with the s3xml codec.
//
// It exists alongside the SDK backend for the calls the SDK cannot express,
// chiefly Wasabi's MOVE extension, and for inspecting raw XML responses.
package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/s3keeper/pkg/provider"
	providers3 "github.com/3leaps/s3keeper/pkg/provider/s3"
	"github.com/3leaps/s3keeper/pkg/s3xml"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Options tunes a rest Provider.
type Options struct {
	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger

	// DumpXML logs every XML response body at debug level.
	DumpXML bool

	// HTTPClient is passed to the signed executor.
	HTTPClient *http.Client
}

// Provider implements provider.Provider and provider.Mover.
type Provider struct {
	exec            Executor
	bucket          string
	maxKeys         int
	versionPageSize int
	logger          *zap.Logger
	dumpXML         bool
}

// Ensure Provider implements the interfaces.
var (
	_ provider.Provider = (*Provider)(nil)
	_ provider.Mover    = (*Provider)(nil)
)

// New creates a rest provider using the same configuration and credential
// chain as the SDK backend.
func New(ctx context.Context, cfg providers3.Config, opts Options) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := providers3.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderREST,
			Bucket:   cfg.Bucket,
			Err:      err,
		}
	}

	exec, err := NewSignedExecutor(ExecutorConfig{
		Endpoint:    cfg.Endpoint,
		Bucket:      cfg.Bucket,
		Region:      awsCfg.Region,
		PathStyle:   cfg.ForcePathStyle,
		Credentials: awsCfg.Credentials,
		HTTPClient:  opts.HTTPClient,
	})
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderREST,
			Bucket:   cfg.Bucket,
			Err:      err,
		}
	}

	return NewWithExecutor(exec, cfg, opts), nil
}

// NewWithExecutor wraps an existing executor.
func NewWithExecutor(exec Executor, cfg providers3.Config, opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = provider.DefaultPageSize
	}
	versionPageSize := cfg.VersionPageSize
	if versionPageSize <= 0 {
		versionPageSize = provider.DefaultVersionPageSize
	}

	return &Provider{
		exec:            exec,
		bucket:          cfg.Bucket,
		maxKeys:         maxKeys,
		versionPageSize: versionPageSize,
		logger:          logger,
		dumpXML:         opts.DumpXML,
	}
}

// Bucket returns the bucket this provider operates on.
func (p *Provider) Bucket() string {
	return p.bucket
}

// ListPage issues GET /{bucket}?list-type=2. Keys are requested URL-encoded
// so control characters survive the XML response.
func (p *Provider) ListPage(ctx context.Context, opts provider.ListPageOptions) (*provider.PageResult, error) {
	params := url.Values{}
	params.Set("list-type", "2")
	params.Set("encoding-type", s3xml.EncodingURL)
	if opts.Delimiter != "" {
		params.Set("delimiter", opts.Delimiter)
	}
	if opts.Prefix != "" {
		params.Set("prefix", opts.Prefix)
	}
	params.Set("max-keys", strconv.Itoa(provider.ClampPageSize(opts.MaxKeys, p.maxKeys)))
	if opts.ContinuationToken != "" {
		params.Set("continuation-token", opts.ContinuationToken)
	}

	body, err := p.call(ctx, "ListPage", opts.Prefix, &Request{Method: http.MethodGet, Parameters: params})
	if err != nil {
		return nil, err
	}

	page, err := s3xml.DecodeListBucketResult(body)
	if err != nil {
		return nil, fmt.Errorf("rest ListPage: %s: %w", p.bucket, err)
	}
	if page.Delimiter == "" && opts.Delimiter != "" {
		page.Delimiter = opts.Delimiter
		for i := range page.Entries {
			page.Entries[i].Delimiter = opts.Delimiter
		}
		for i := range page.Folders {
			page.Folders[i].Delimiter = opts.Delimiter
		}
	}
	if page.Prefix == "" {
		page.Prefix = opts.Prefix
	}
	return page, nil
}

// ListVersionsPage issues GET /{bucket}?versions.
func (p *Provider) ListVersionsPage(ctx context.Context, opts provider.ListVersionsOptions) (*provider.VersionPageResult, error) {
	params := url.Values{}
	params.Set("versions", "")
	params.Set("encoding-type", s3xml.EncodingURL)
	if opts.Delimiter != "" {
		params.Set("delimiter", opts.Delimiter)
	}
	if opts.Prefix != "" {
		params.Set("prefix", opts.Prefix)
	}
	params.Set("max-keys", strconv.Itoa(provider.ClampPageSize(opts.MaxKeys, p.versionPageSize)))
	if opts.KeyMarker != "" && opts.VersionIDMarker != "" {
		params.Set("key-marker", opts.KeyMarker)
		params.Set("version-id-marker", opts.VersionIDMarker)
	}

	body, err := p.call(ctx, "ListVersionsPage", opts.Prefix, &Request{Method: http.MethodGet, Parameters: params})
	if err != nil {
		return nil, err
	}

	page, err := s3xml.DecodeListVersionsResult(body)
	if err != nil {
		return nil, fmt.Errorf("rest ListVersionsPage: %s: %w", p.bucket, err)
	}
	if page.Delimiter == "" && opts.Delimiter != "" {
		page.Delimiter = opts.Delimiter
		for _, item := range page.Items {
			if item.Version != nil {
				item.Version.Delimiter = opts.Delimiter
			}
			if item.DeleteMarker != nil {
				item.DeleteMarker.Delimiter = opts.Delimiter
			}
		}
	}
	if page.Prefix == "" {
		page.Prefix = opts.Prefix
	}
	return page, nil
}

// DeleteObjects issues POST /{bucket}?delete with up to 1000 identifiers.
func (p *Provider) DeleteObjects(ctx context.Context, ids []provider.ObjectIdentifier, quiet bool) (*provider.DeleteResult, error) {
	if err := provider.CheckDeleteBatch(ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &provider.DeleteResult{}, nil
	}

	payload, err := s3xml.EncodeDeleteRequest(ids, quiet)
	if err != nil {
		return nil, fmt.Errorf("rest DeleteObjects: encode: %w", err)
	}

	params := url.Values{}
	params.Set("delete", "")
	body, err := p.call(ctx, "DeleteObjects", "", &Request{
		Method:      http.MethodPost,
		Parameters:  params,
		ContentType: "application/xml",
		Body:        payload,
	})
	if err != nil {
		return nil, err
	}

	result, err := s3xml.DecodeDeleteResult(body)
	if err != nil {
		return nil, fmt.Errorf("rest DeleteObjects: %s: %w", p.bucket, err)
	}
	return result, nil
}

// Move issues the Wasabi MOVE extension for one key or one prefix.
func (p *Provider) Move(ctx context.Context, op provider.MoveOperation) error {
	if op.Source == "" || op.Destination == "" {
		return &provider.ProviderError{
			Op:       "Move",
			Provider: provider.ProviderREST,
			Bucket:   p.bucket,
			Key:      op.Source,
			Err:      errors.New("source and destination are required"),
		}
	}

	_, err := p.call(ctx, "Move", op.Source, &Request{
		Method: "MOVE",
		Path:   op.Source,
		ExtraHeaders: map[string]string{
			"Destination":     op.Destination,
			"Overwrite":       strconv.FormatBool(op.Overwrite),
			"X-Wasabi-Prefix": strconv.FormatBool(op.Mode == provider.MovePrefix),
		},
	})
	return err
}

// GetObject issues GET /{bucket}/{key}.
func (p *Provider) GetObject(ctx context.Context, opts provider.GetObjectOptions) (*provider.GetObjectResult, error) {
	req := &Request{
		Method:       http.MethodGet,
		Path:         opts.Key,
		ExtraHeaders: map[string]string{},
	}
	if opts.VersionID != "" {
		req.Parameters = url.Values{"versionId": {opts.VersionID}}
	}
	if opts.Range != "" {
		req.ExtraHeaders["Range"] = opts.Range
	}
	if opts.IfMatch != "" {
		req.ExtraHeaders["If-Match"] = opts.IfMatch
	}
	if opts.IfNoneMatch != "" {
		req.ExtraHeaders["If-None-Match"] = opts.IfNoneMatch
	}
	if !opts.IfModifiedSince.IsZero() {
		req.ExtraHeaders["If-Modified-Since"] = opts.IfModifiedSince.UTC().Format(http.TimeFormat)
	}
	if !opts.IfUnmodifiedSince.IsZero() {
		req.ExtraHeaders["If-Unmodified-Since"] = opts.IfUnmodifiedSince.UTC().Format(http.TimeFormat)
	}

	resp, err := p.do(ctx, "GetObject", opts.Key, req)
	if err != nil {
		return nil, err
	}

	result := &provider.GetObjectResult{
		Body:         resp.Body,
		ContentType:  resp.Header.Get("Content-Type"),
		ContentRange: resp.Header.Get("Content-Range"),
		ETag:         strings.Trim(resp.Header.Get("ETag"), `"`),
		VersionID:    resp.Header.Get("X-Amz-Version-Id"),
	}
	if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		result.ContentLength = n
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			result.LastModified = t.UTC()
		}
	}
	return result, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

// call sends the request and returns the full response body.
func (p *Provider) call(ctx context.Context, op, key string, req *Request) ([]byte, error) {
	resp, err := p.do(ctx, op, key, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.wrapError(op, key, fmt.Errorf("%w: read body: %v", provider.ErrTransport, err))
	}
	if p.dumpXML && len(body) > 0 {
		p.logger.Debug("Response body",
			zap.String("op", op),
			zap.String("bucket", p.bucket),
			zap.ByteString("xml", body))
	}
	return body, nil
}

// do sends the request and converts non-2xx statuses into provider errors.
// On success the caller owns resp.Body.
func (p *Provider) do(ctx context.Context, op, key string, req *Request) (*Response, error) {
	started := time.Now()
	resp, err := p.exec.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, p.wrapError(op, key, err)
		}
		return nil, p.wrapError(op, key, fmt.Errorf("%w: %v", provider.ErrTransport, err))
	}

	p.logger.Debug("S3 request",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("key", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if p.dumpXML && len(body) > 0 {
		p.logger.Debug("Error body",
			zap.String("op", op),
			zap.String("bucket", p.bucket),
			zap.ByteString("xml", body))
	}
	return nil, p.wrapError(op, key, statusError(resp.StatusCode, body))
}

// statusError classifies an error response by S3 code, then by status.
func statusError(status int, body []byte) error {
	apiErr, decodeErr := s3xml.DecodeErrorResponse(body)

	var sentinel error
	if decodeErr == nil {
		sentinel = provider.ClassifyCode(apiErr.Code)
	}
	if sentinel == nil {
		sentinel = provider.ClassifyStatus(status)
	}

	switch {
	case sentinel != nil && decodeErr == nil:
		return fmt.Errorf("%w: %w", sentinel, apiErr)
	case sentinel != nil:
		return fmt.Errorf("%w: HTTP %d", sentinel, status)
	case decodeErr == nil:
		return apiErr
	default:
		return fmt.Errorf("unexpected HTTP status %d", status)
	}
}

func (p *Provider) wrapError(op, key string, err error) error {
	return &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderREST,
		Bucket:   p.bucket,
		Key:      key,
		Err:      err,
	}
}
