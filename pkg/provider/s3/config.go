// Package s3 implements the provider interface for AWS S3 and S3-compatible
// storage on top of the AWS SDK.
package s3

import (
	"fmt"
	"time"
)

// Config configures an S3 provider.
//
// Authentication priority (AWS SDK v2 default chain):
//  1. Explicit AccessKeyID/SecretAccessKey (if provided)
//  2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
//  3. Shared credentials file (~/.aws/credentials)
//  4. Shared config file (~/.aws/config) with profile
//
// Region handling:
//   - For AWS S3: If Region is empty and not set via environment/profile,
//     defaults to us-east-1.
//   - For Wasabi and other S3-compatible stores: no default region is
//     applied when Endpoint is set. Wasabi signs per region, so set it.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the signing region.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	// Leave empty for AWS S3.
	// Examples:
	//   - Wasabi: https://s3.wasabisys.com
	//   - Wasabi (regional): https://s3.eu-central-1.wasabisys.com
	//   - MinIO/moto: http://localhost:9000
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must also be set.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID is set.
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs (bucket in path, not subdomain).
	ForcePathStyle bool

	// MaxKeys is the default page size for object listings.
	// Zero uses DefaultMaxKeys. Values over 1000 are clamped.
	MaxKeys int

	// VersionPageSize is the default page size for version listings.
	// Zero uses provider.DefaultVersionPageSize.
	VersionPageSize int

	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration
}

// DefaultMaxKeys is the default page size for List operations.
const DefaultMaxKeys = 1000

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// WasabiEndpoint returns the service endpoint for a Wasabi region.
// us-east-1 maps to the global endpoint.
func WasabiEndpoint(region string) string {
	if region == "" || region == "us-east-1" {
		return "https://s3.wasabisys.com"
	}
	return fmt.Sprintf("https://s3.%s.wasabisys.com", region)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}

	// If one explicit credential is set, both must be set
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}

	if c.MaxKeys < 0 {
		return &ConfigError{Field: "MaxKeys", Message: "must not be negative"}
	}
	if c.VersionPageSize < 0 {
		return &ConfigError{Field: "VersionPageSize", Message: "must not be negative"}
	}
	if c.Timeout < 0 {
		return &ConfigError{Field: "Timeout", Message: "must not be negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}
