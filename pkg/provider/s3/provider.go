package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/s3keeper/pkg/provider"
	"github.com/3leaps/s3keeper/pkg/s3xml"
)

// API is the subset of *s3.Client used by Provider.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Provider implements provider.Provider for AWS S3 and S3-compatible storage
// on top of the AWS SDK.
type Provider struct {
	client          API
	bucket          string
	maxKeys         int
	versionPageSize int
}

// Ensure Provider implements the interfaces.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.Lister        = (*Provider)(nil)
	_ provider.VersionLister = (*Provider)(nil)
	_ provider.BulkDeleter   = (*Provider)(nil)
	_ provider.ObjectGetter  = (*Provider)(nil)
)

// New creates a new S3 provider with the given configuration.
//
// The provider uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderS3,
			Bucket:   cfg.Bucket,
			Err:      err,
		}
	}

	// Build S3 client options
	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewWithClient wraps an existing client. Used by tests and by callers that
// share one client across buckets.
func NewWithClient(client API, cfg Config) *Provider {
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	versionPageSize := cfg.VersionPageSize
	if versionPageSize <= 0 {
		versionPageSize = provider.DefaultVersionPageSize
	}

	return &Provider{
		client:          client,
		bucket:          cfg.Bucket,
		maxKeys:         maxKeys,
		versionPageSize: versionPageSize,
	}
}

// LoadAWSConfig builds the AWS configuration with appropriate credentials.
//
// It is shared with the rest backend, which signs requests with the same
// credential chain.
func LoadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	if cfg.Timeout > 0 {
		opts = append(opts, config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Region, cfg.Endpoint, awsCfg.Region)

	return awsCfg, nil
}

// Bucket returns the bucket this provider operates on.
func (p *Provider) Bucket() string {
	return p.bucket
}

// ListPage returns one page of objects and common prefixes.
func (p *Provider) ListPage(ctx context.Context, opts provider.ListPageOptions) (*provider.PageResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(provider.ClampPageSize(opts.MaxKeys, p.maxKeys))),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.wrapError("ListPage", opts.Prefix, err)
	}

	delimiter := aws.ToString(output.Delimiter)
	if delimiter == "" {
		delimiter = opts.Delimiter
	}

	result := &provider.PageResult{
		Prefix:                aws.ToString(output.Prefix),
		Delimiter:             delimiter,
		IsTruncated:           aws.ToBool(output.IsTruncated),
		NextContinuationToken: aws.ToString(output.NextContinuationToken),
		Entries:               make([]provider.ObjectEntry, 0, len(output.Contents)),
		Folders:               make([]provider.FolderPrefix, 0, len(output.CommonPrefixes)),
	}
	if result.Prefix == "" {
		result.Prefix = opts.Prefix
	}
	result.NormalizeTruncation()

	for _, obj := range output.Contents {
		result.Entries = append(result.Entries, provider.ObjectEntry{
			Key:          aws.ToString(obj.Key),
			Delimiter:    delimiter,
			ETag:         cleanETag(aws.ToString(obj.ETag)),
			LastModified: aws.ToTime(obj.LastModified),
			Size:         aws.ToInt64(obj.Size),
			StorageClass: string(obj.StorageClass),
		})
	}
	for _, cp := range output.CommonPrefixes {
		result.Folders = append(result.Folders, provider.FolderPrefix{
			Prefix:    aws.ToString(cp.Prefix),
			Delimiter: delimiter,
		})
	}

	return result, nil
}

// ListVersionsPage returns one page of object versions and delete markers.
//
// The SDK splits versions and delete markers into separate slices. They are
// merged back into the service's listing order: key ascending, newest first
// within a key. The merge only sees LastModified, so items of one key that
// share a timestamp keep the SDK's slice order (versions before delete
// markers), which is not guaranteed to match the service. Use IsLatest
// rather than position to find the current version.
func (p *Provider) ListVersionsPage(ctx context.Context, opts provider.ListVersionsOptions) (*provider.VersionPageResult, error) {
	input := &s3.ListObjectVersionsInput{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(provider.ClampPageSize(opts.MaxKeys, p.versionPageSize))),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.KeyMarker != "" && opts.VersionIDMarker != "" {
		input.KeyMarker = aws.String(opts.KeyMarker)
		input.VersionIdMarker = aws.String(opts.VersionIDMarker)
	}

	output, err := p.client.ListObjectVersions(ctx, input)
	if err != nil {
		return nil, p.wrapError("ListVersionsPage", opts.Prefix, err)
	}

	delimiter := aws.ToString(output.Delimiter)
	if delimiter == "" {
		delimiter = opts.Delimiter
	}

	items := make([]provider.VersionItem, 0, len(output.Versions)+len(output.DeleteMarkers))
	for _, v := range output.Versions {
		entry := versionEntry(v, delimiter)
		items = append(items, provider.VersionItem{Version: &entry})
	}
	for _, m := range output.DeleteMarkers {
		marker := deleteMarker(m, delimiter)
		items = append(items, provider.VersionItem{DeleteMarker: &marker})
	}
	sortVersionItems(items)

	result := &provider.VersionPageResult{
		Prefix:    aws.ToString(output.Prefix),
		Delimiter: delimiter,
		Items:     items,
	}
	if result.Prefix == "" {
		result.Prefix = opts.Prefix
	}
	if aws.ToBool(output.IsTruncated) {
		result.NextMarker = provider.NewVersionMarker(
			aws.ToString(output.NextKeyMarker),
			aws.ToString(output.NextVersionIdMarker),
		)
	}

	return result, nil
}

func versionEntry(v types.ObjectVersion, delimiter string) provider.ObjectEntry {
	return provider.ObjectEntry{
		Key:          aws.ToString(v.Key),
		Delimiter:    delimiter,
		ETag:         cleanETag(aws.ToString(v.ETag)),
		LastModified: aws.ToTime(v.LastModified),
		Size:         aws.ToInt64(v.Size),
		StorageClass: string(v.StorageClass),
		Version: &provider.VersionInfo{
			IsLatest:  aws.ToBool(v.IsLatest),
			VersionID: aws.ToString(v.VersionId),
		},
	}
}

func deleteMarker(m types.DeleteMarkerEntry, delimiter string) provider.DeleteMarker {
	marker := provider.DeleteMarker{
		Key:          aws.ToString(m.Key),
		Delimiter:    delimiter,
		VersionID:    aws.ToString(m.VersionId),
		IsLatest:     m.IsLatest,
		LastModified: m.LastModified,
	}
	if m.Owner != nil {
		marker.Owner = &provider.Owner{
			ID:          aws.ToString(m.Owner.ID),
			DisplayName: aws.ToString(m.Owner.DisplayName),
		}
	}
	return marker
}

func sortVersionItems(items []provider.VersionItem) {
	modified := func(item provider.VersionItem) int64 {
		if item.Version != nil {
			return item.Version.LastModified.UnixNano()
		}
		if item.DeleteMarker.LastModified != nil {
			return item.DeleteMarker.LastModified.UnixNano()
		}
		return 0
	}
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := items[i].Key(), items[j].Key()
		if ki != kj {
			return ki < kj
		}
		return modified(items[i]) > modified(items[j])
	})
}

// DeleteObjects deletes up to provider.MaxDeleteBatch objects in one request.
func (p *Provider) DeleteObjects(ctx context.Context, ids []provider.ObjectIdentifier, quiet bool) (*provider.DeleteResult, error) {
	if err := provider.CheckDeleteBatch(ids); err != nil {
		return nil, err
	}
	if err := s3xml.CheckIdentifiers(ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &provider.DeleteResult{}, nil
	}

	objects := make([]types.ObjectIdentifier, 0, len(ids))
	for _, id := range ids {
		obj := types.ObjectIdentifier{Key: aws.String(id.Key)}
		if id.VersionID != "" {
			obj.VersionId = aws.String(id.VersionID)
		}
		objects = append(objects, obj)
	}

	output, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(p.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(quiet),
		},
	})
	if err != nil {
		return nil, p.wrapError("DeleteObjects", "", err)
	}

	result := &provider.DeleteResult{
		Deleted: make([]provider.ObjectIdentifier, 0, len(output.Deleted)),
	}
	for _, d := range output.Deleted {
		result.Deleted = append(result.Deleted, provider.ObjectIdentifier{
			Key:       aws.ToString(d.Key),
			VersionID: aws.ToString(d.VersionId),
		})
	}
	for _, e := range output.Errors {
		result.Errors = append(result.Errors, provider.DeleteError{
			Key:       aws.ToString(e.Key),
			VersionID: aws.ToString(e.VersionId),
			Code:      aws.ToString(e.Code),
			Message:   aws.ToString(e.Message),
		})
	}

	return result, nil
}

// GetObject downloads an object, honoring range and conditional options.
func (p *Provider) GetObject(ctx context.Context, opts provider.GetObjectOptions) (*provider.GetObjectResult, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(opts.Key),
	}
	if opts.VersionID != "" {
		input.VersionId = aws.String(opts.VersionID)
	}
	if opts.Range != "" {
		input.Range = aws.String(opts.Range)
	}
	if opts.IfMatch != "" {
		input.IfMatch = aws.String(opts.IfMatch)
	}
	if opts.IfNoneMatch != "" {
		input.IfNoneMatch = aws.String(opts.IfNoneMatch)
	}
	if !opts.IfModifiedSince.IsZero() {
		input.IfModifiedSince = aws.Time(opts.IfModifiedSince)
	}
	if !opts.IfUnmodifiedSince.IsZero() {
		input.IfUnmodifiedSince = aws.Time(opts.IfUnmodifiedSince)
	}

	output, err := p.client.GetObject(ctx, input)
	if err != nil {
		return nil, p.wrapError("GetObject", opts.Key, err)
	}

	return &provider.GetObjectResult{
		Body:          output.Body,
		ContentLength: aws.ToInt64(output.ContentLength),
		ContentType:   aws.ToString(output.ContentType),
		ContentRange:  aws.ToString(output.ContentRange),
		ETag:          cleanETag(aws.ToString(output.ETag)),
		LastModified:  aws.ToTime(output.LastModified),
		VersionID:     aws.ToString(output.VersionId),
	}, nil
}

// Close releases any resources held by the provider.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (p *Provider) Close() error {
	return nil
}

// wrapError converts S3 errors to provider errors with appropriate sentinel errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderS3,
		Bucket:   p.bucket,
		Key:      key,
		Err:      err,
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapped
	}

	// Check for specific S3 error types first
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel := provider.ClassifyCode(apiErr.ErrorCode()); sentinel != nil {
			wrapped.Err = fmt.Errorf("%w: %s", sentinel, apiErr.ErrorMessage())
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "NoSuchKey") || strings.Contains(errMsg, "NotFound") || strings.Contains(errMsg, "404"):
		wrapped.Err = provider.ErrNotFound
	case strings.Contains(errMsg, "NoSuchBucket"):
		wrapped.Err = provider.ErrBucketNotFound
	case strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Forbidden") || strings.Contains(errMsg, "403"):
		wrapped.Err = provider.ErrAccessDenied
	case strings.Contains(errMsg, "InvalidAccessKeyId") || strings.Contains(errMsg, "SignatureDoesNotMatch"):
		wrapped.Err = provider.ErrInvalidCredentials
	case strings.Contains(errMsg, "SlowDown") || strings.Contains(errMsg, "Throttling") || strings.Contains(errMsg, "429"):
		wrapped.Err = provider.ErrThrottled
	case strings.Contains(errMsg, "ServiceUnavailable") || strings.Contains(errMsg, "503"):
		wrapped.Err = provider.ErrProviderUnavailable
	default:
		// No API error and no recognizable status: the request never got a
		// response.
		wrapped.Err = fmt.Errorf("%w: %v", provider.ErrTransport, err)
	}

	return wrapped
}

// cleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// resolveRegion determines the final region to use after SDK config loading.
//
// The sdkRegion parameter is the region after SDK loading, which already
// incorporates explicit cfgRegion (if set) or env/profile resolution.
//
// This function only applies the fallback default:
//   - If sdkRegion is still empty AND no custom endpoint, default to us-east-1
//   - For S3-compatible stores (endpoint set), no defaulting occurs
func resolveRegion(cfgRegion, endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}

	// Only default for AWS S3 (no custom endpoint)
	if endpoint == "" {
		return DefaultAWSRegion
	}

	return ""
}
