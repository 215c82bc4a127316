package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "S3KEEPER"

// AppName names the config directory under the user config root.
const AppName = "s3keeper"

var (
	configMu   sync.RWMutex
	appConfig  *Config
	configFile string
)

// EnvSpec maps one environment variable to a config key.
type EnvSpec struct {
	Name string
	Key  string
}

// SetConfigFile selects an explicit config file for subsequent Load calls.
// An empty path restores discovery of the user config file.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = path
}

// Defaults returns the built-in default values as a nested map.
func Defaults() map[string]any {
	return map[string]any{
		"backend":  "sdk",
		"readonly": false,
		"connection": map[string]any{
			"region":            "",
			"endpoint":          "",
			"profile":           "",
			"access_key_id":     "",
			"secret_access_key": "",
			"force_path_style":  false,
			"timeout":           "0s",
		},
		"listing": map[string]any{
			"delimiter":         "/",
			"page_size":         1000,
			"version_page_size": 250,
			"rate_limit":        0.0,
			"max_pages":         0,
			"concurrency":       4,
			"max_buffer":        10000,
		},
		"delete": map[string]any{
			"batch_size":  1000,
			"parallelism": 4,
			"quiet":       false,
			"max_objects": 0,
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "structured",
		},
	}
}

// Load resolves the configuration and stores it for GetConfig.
//
// Precedence, lowest first: defaults, config file, environment, overrides.
// Overrides are nested maps keyed like the config file.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range flatten("", Defaults()) {
		v.SetDefault(key, value)
	}

	configMu.RLock()
	path := configFile
	configMu.RUnlock()

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Key, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, value := range flatten("", o) {
			v.Set(key, value)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	switch c.Backend {
	case "sdk", "rest":
	default:
		return fmt.Errorf("invalid backend %q (expected sdk or rest)", c.Backend)
	}
	if c.Listing.PageSize < 1 || c.Listing.PageSize > 1000 {
		return fmt.Errorf("listing.page_size must be between 1 and 1000, got %d", c.Listing.PageSize)
	}
	if c.Listing.VersionPageSize < 1 || c.Listing.VersionPageSize > 1000 {
		return fmt.Errorf("listing.version_page_size must be between 1 and 1000, got %d", c.Listing.VersionPageSize)
	}
	if c.Listing.MaxBuffer < 0 {
		return fmt.Errorf("listing.max_buffer must not be negative, got %d", c.Listing.MaxBuffer)
	}
	if c.Delete.BatchSize < 1 || c.Delete.BatchSize > 1000 {
		return fmt.Errorf("delete.batch_size must be between 1 and 1000, got %d", c.Delete.BatchSize)
	}
	if c.Delete.Parallelism < 1 {
		return fmt.Errorf("delete.parallelism must be positive, got %d", c.Delete.Parallelism)
	}
	if (c.Connection.AccessKeyID == "") != (c.Connection.SecretAccessKey == "") {
		return errors.New("connection.access_key_id and connection.secret_access_key must be set together")
	}
	return nil
}

func readConfigFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", explicit, err)
		}
		return nil
	}

	for _, path := range getUserConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// getUserConfigPaths lists candidate config files, most specific first.
func getUserConfigPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, AppName, "config.yaml"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, AppName, "config.yaml")
		if len(paths) == 0 || paths[0] != p {
			paths = append(paths, p)
		}
	}
	return paths
}

// getEnvSpecs maps S3KEEPER_* variables to config keys. Short names cover
// the settings most often changed per invocation.
func getEnvSpecs() []EnvSpec {
	specs := []EnvSpec{
		{Name: EnvPrefix + "_BACKEND", Key: "backend"},
		{Name: EnvPrefix + "_READONLY", Key: "readonly"},
		{Name: EnvPrefix + "_REGION", Key: "connection.region"},
		{Name: EnvPrefix + "_ENDPOINT", Key: "connection.endpoint"},
		{Name: EnvPrefix + "_PROFILE", Key: "connection.profile"},
		{Name: EnvPrefix + "_ACCESS_KEY_ID", Key: "connection.access_key_id"},
		{Name: EnvPrefix + "_SECRET_ACCESS_KEY", Key: "connection.secret_access_key"},
		{Name: EnvPrefix + "_FORCE_PATH_STYLE", Key: "connection.force_path_style"},
		{Name: EnvPrefix + "_TIMEOUT", Key: "connection.timeout"},
		{Name: EnvPrefix + "_PAGE_SIZE", Key: "listing.page_size"},
		{Name: EnvPrefix + "_VERSION_PAGE_SIZE", Key: "listing.version_page_size"},
		{Name: EnvPrefix + "_RATE_LIMIT", Key: "listing.rate_limit"},
		{Name: EnvPrefix + "_MAX_PAGES", Key: "listing.max_pages"},
		{Name: EnvPrefix + "_MAX_BUFFER", Key: "listing.max_buffer"},
		{Name: EnvPrefix + "_BATCH_SIZE", Key: "delete.batch_size"},
		{Name: EnvPrefix + "_PARALLELISM", Key: "delete.parallelism"},
		{Name: EnvPrefix + "_MAX_OBJECTS", Key: "delete.max_objects"},
		{Name: EnvPrefix + "_LOG_LEVEL", Key: "logging.level"},
		{Name: EnvPrefix + "_LOG_PROFILE", Key: "logging.profile"},
	}
	return specs
}

// flatten converts nested maps to dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}
