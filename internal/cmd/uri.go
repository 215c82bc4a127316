package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/3leaps/s3keeper/pkg/match"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedScheme indicates the URI scheme is not supported.
	ErrUnsupportedScheme = errors.New("unsupported scheme")

	// ErrMissingBucket indicates the URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

// Supported URI schemes.
const (
	SchemeS3     = "s3"
	SchemeWasabi = "wasabi"
)

// ObjectURI is a parsed bucket location.
//
// Example URIs:
//   - s3://bucket/logs/app.log
//   - wasabi://bucket/tv/
//   - s3://bucket/logs/**/*.gz
type ObjectURI struct {
	// Scheme is "s3" or "wasabi". wasabi:// selects the Wasabi endpoint for
	// the configured region unless an endpoint is set explicitly.
	Scheme string

	Bucket string

	// Key is the object key or listing prefix. Empty for the bucket root.
	Key string

	// Pattern is set if the path contains glob characters. Key then holds
	// the literal prefix before the first glob character.
	Pattern string
}

// String returns the URI in canonical form.
func (u *ObjectURI) String() string {
	path := u.Key
	if u.Pattern != "" {
		path = u.Pattern
	}
	return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, path)
}

// IsPattern returns true if the URI contains glob pattern characters.
func (u *ObjectURI) IsPattern() bool {
	return u.Pattern != ""
}

// IsPrefix returns true if the URI names a folder or the bucket root.
func (u *ObjectURI) IsPrefix() bool {
	return u.Key == "" || strings.HasSuffix(u.Key, "/")
}

// IsWasabi reports whether the URI used the wasabi:// scheme.
func (u *ObjectURI) IsWasabi() bool {
	return u.Scheme == SchemeWasabi
}

// ParseURI parses a bucket URI.
//
// Supported formats:
//   - s3://bucket
//   - s3://bucket/key
//   - s3://bucket/prefix/
//   - s3://bucket/prefix/**/*.gz
//   - wasabi://bucket/prefix/
func ParseURI(uri string) (*ObjectURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// url.Parse would treat '?' in a glob as a query delimiter.
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3://... or wasabi://...)", ErrInvalidURI)
	}

	scheme := strings.ToLower(uri[:schemeEnd])
	switch scheme {
	case SchemeS3, SchemeWasabi:
	default:
		return nil, fmt.Errorf("%w: %s (supported: s3, wasabi)", ErrUnsupportedScheme, scheme)
	}

	bucket, key, _ := strings.Cut(uri[schemeEnd+3:], "/")
	if bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}
	if _, err := url.Parse("s3://" + bucket + "/"); err != nil {
		return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
	}

	result := &ObjectURI{Scheme: scheme, Bucket: bucket}
	if match.IsGlobPattern(key) {
		result.Pattern = key
	}
	// Escaped metacharacters are literal key characters.
	result.Key = match.DerivePrefix(key)
	return result, nil
}
