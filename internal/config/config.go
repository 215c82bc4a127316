// Package config loads s3keeper settings from defaults, an optional config
// file, S3KEEPER_* environment variables and runtime overrides, in that order
// of increasing precedence.
package config

import "time"

// Config is the resolved application configuration.
type Config struct {
	// Backend selects the provider implementation: "sdk" or "rest".
	Backend string `mapstructure:"backend"`

	// Readonly refuses every command that mutates a bucket.
	Readonly bool `mapstructure:"readonly"`

	Connection ConnectionConfig `mapstructure:"connection"`
	Listing    ListingConfig    `mapstructure:"listing"`
	Delete     DeleteConfig     `mapstructure:"delete"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ConnectionConfig holds endpoint and credential settings.
type ConnectionConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Profile  string `mapstructure:"profile"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	ForcePathStyle bool `mapstructure:"force_path_style"`

	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ListingConfig holds pagination settings.
type ListingConfig struct {
	Delimiter       string  `mapstructure:"delimiter"`
	PageSize        int     `mapstructure:"page_size"`
	VersionPageSize int     `mapstructure:"version_page_size"`
	RateLimit       float64 `mapstructure:"rate_limit"`
	MaxPages        int     `mapstructure:"max_pages"`
	Concurrency     int     `mapstructure:"concurrency"`

	// MaxBuffer caps the entries held in memory by sorted listings and glob
	// moves. Zero means unlimited.
	MaxBuffer int `mapstructure:"max_buffer"`
}

// DeleteConfig holds batch dispatch settings.
type DeleteConfig struct {
	BatchSize   int  `mapstructure:"batch_size"`
	Parallelism int  `mapstructure:"parallelism"`
	Quiet       bool `mapstructure:"quiet"`

	// MaxObjects caps the objects one rm invocation may delete.
	// Zero means unlimited.
	MaxObjects int `mapstructure:"max_objects"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}
