package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable indicates the provider service is unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")

	// ErrPreconditionFailed indicates an If-Match/If-Unmodified-Since
	// condition did not hold.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrNotModified indicates an If-None-Match/If-Modified-Since condition
	// short-circuited the request.
	ErrNotModified = errors.New("not modified")

	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("transport failure")

	// ErrBatchTooLarge indicates a delete batch above MaxDeleteBatch.
	// It is returned before any request is built.
	ErrBatchTooLarge = errors.New("delete batch exceeds 1000 objects")

	// ErrUnsupported indicates the backend cannot perform the operation.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// ProviderError wraps provider-specific errors with context.
type ProviderError struct {
	// Op is the operation that failed (e.g., "ListPage", "DeleteObjects").
	Op string

	// Provider is the provider type (e.g., "s3").
	Provider ProviderType

	// Bucket is the bucket name, if applicable.
	Bucket string

	// Key is the object key or prefix, if applicable.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s/%s: %v", e.Provider, e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// BatchSizeError reports a rejected delete batch.
type BatchSizeError struct {
	Size int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("%v: got %d", ErrBatchTooLarge, e.Size)
}

func (e *BatchSizeError) Unwrap() error {
	return ErrBatchTooLarge
}

// CheckDeleteBatch returns a *BatchSizeError when ids exceeds MaxDeleteBatch.
func CheckDeleteBatch(ids []ObjectIdentifier) error {
	if len(ids) > MaxDeleteBatch {
		return &BatchSizeError{Size: len(ids)}
	}
	return nil
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsBucketNotFound returns true if the error indicates the bucket does not exist.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsInvalidCredentials returns true if the error indicates authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsProviderUnavailable returns true if the error indicates the provider service is unavailable.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsAuthFailure returns true for both permission and credential failures.
func IsAuthFailure(err error) bool {
	return IsAccessDenied(err) || IsInvalidCredentials(err)
}

// IsTransport returns true if the request failed before a response arrived.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// ClassifyCode maps an S3 error code to a sentinel error.
// Unknown codes return nil.
func ClassifyCode(code string) error {
	switch code {
	case "NoSuchKey", "NotFound", "NoSuchVersion":
		return ErrNotFound
	case "NoSuchBucket":
		return ErrBucketNotFound
	case "AccessDenied", "Forbidden", "AllAccessDisabled":
		return ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
		return ErrInvalidCredentials
	case "SlowDown", "Throttling", "RequestLimitExceeded", "TooManyRequests":
		return ErrThrottled
	case "ServiceUnavailable", "InternalError":
		return ErrProviderUnavailable
	case "PreconditionFailed":
		return ErrPreconditionFailed
	case "NotModified":
		return ErrNotModified
	}
	return nil
}

// ClassifyStatus maps an HTTP status code to a sentinel error.
// Statuses with no specific meaning return nil.
func ClassifyStatus(status int) error {
	switch status {
	case 304:
		return ErrNotModified
	case 401:
		return ErrInvalidCredentials
	case 403:
		return ErrAccessDenied
	case 404:
		return ErrNotFound
	case 412:
		return ErrPreconditionFailed
	case 429:
		return ErrThrottled
	case 500, 502, 503, 504:
		return ErrProviderUnavailable
	}
	return nil
}
