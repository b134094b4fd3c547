// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CacheConfig contains settings for the on-device media cache.
type CacheConfig struct {
	Dir            string          `json:"dir" validate:"required"`
	IndexFile      string          `json:"index_file"`
	RetentionDays  int             `json:"retention_days" validate:"gte=0"`
	MaxEntries     int             `json:"max_entries" validate:"gte=0"`
	TimeoutMinutes int             `json:"timeout_minutes" validate:"gte=0"`
	Eviction       SchedulerConfig `json:"eviction"`
}

// SchedulerConfig contains settings for individual scheduled operations.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule" validate:"required_if=Enabled true"`
}

// OAuthConfig contains client-credentials settings for protected media hosts.
type OAuthConfig struct {
	Enabled      bool     `json:"enabled"`
	TokenURL     string   `json:"token_url" validate:"required_if=Enabled true,omitempty,url"`
	ClientID     string   `json:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string   `json:"client_secret" validate:"required_if=Enabled true"` //nolint:gosec // G117: intentional config field for fetch auth
	Scopes       []string `json:"scopes"`
	Hosts        []string `json:"hosts" validate:"required_if=Enabled true,dive,required"`
}

// FetchConfig contains settings for downloading remote media references.
type FetchConfig struct {
	MaxDownloadSizeBytes int64       `json:"max_download_size_bytes" validate:"gte=0"`
	TimeoutSeconds       int         `json:"timeout_seconds" validate:"gte=0"`
	MaxAttempts          int         `json:"max_attempts" validate:"gte=0,lte=10"`
	AllowPrivateNetworks bool        `json:"allow_private_networks"`
	OAuth                OAuthConfig `json:"oauth"`
}

// ImageConfig contains image normalization settings.
type ImageConfig struct {
	MaxDimension int `json:"max_dimension" validate:"omitempty,gt=0"`
}

// S3Config contains settings for resolving s3:// media references.
type S3Config struct {
	Enabled         bool   `json:"enabled"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id" validate:"required_if=Enabled true"`
	SecretAccessKey string `json:"secret_access_key" validate:"required_if=Enabled true"`
	ForcePathStyle  bool   `json:"force_path_style"`
}

// APIConfig contains API authentication and server settings.
type APIConfig struct {
	Enabled               bool     `json:"enabled"`
	Keys                  []string `json:"keys" validate:"required_if=Enabled true,dive,required"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds" validate:"gte=0"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format" validate:"omitempty,oneof=text json"`
}

// Config represents the complete application configuration.
type Config struct {
	Cache CacheConfig `json:"cache"`
	Fetch FetchConfig `json:"fetch"`
	Image ImageConfig `json:"image"`
	S3    S3Config    `json:"s3"`
	API   APIConfig   `json:"api"`
	Log   LogConfig   `json:"log"`
}

const (
	DefaultMaxDownloadSizeBytes  = 50 * 1024 * 1024
	DefaultFetchTimeoutSeconds   = 30
	DefaultFetchMaxAttempts      = 3
	DefaultMaxDimension          = 1024
	DefaultRequestTimeoutSeconds = 30
	DefaultRetentionDays         = 14
	DefaultMaxEntries            = 500
	DefaultEvictionTimeoutMin    = 10
	DefaultIndexFile             = "media-index.db"
)

// GetMaxDownloadBytes returns the maximum allowed media download size in bytes.
func (c *FetchConfig) GetMaxDownloadBytes() int64 {
	return cmp.Or(c.MaxDownloadSizeBytes, DefaultMaxDownloadSizeBytes)
}

// GetTimeout returns the remote fetch timeout as a Duration.
func (c *FetchConfig) GetTimeout() time.Duration {
	return time.Duration(cmp.Or(c.TimeoutSeconds, DefaultFetchTimeoutSeconds)) * time.Second
}

// GetMaxAttempts returns the number of fetch attempts per remote reference.
func (c *FetchConfig) GetMaxAttempts() int {
	return cmp.Or(c.MaxAttempts, DefaultFetchMaxAttempts)
}

// GetMaxDimension returns the default bound on the largest output dimension.
func (c *ImageConfig) GetMaxDimension() int {
	return cmp.Or(c.MaxDimension, DefaultMaxDimension)
}

// GetRequestTimeout returns the HTTP request timeout as a Duration.
func (c *APIConfig) GetRequestTimeout() time.Duration {
	return time.Duration(cmp.Or(c.RequestTimeoutSeconds, DefaultRequestTimeoutSeconds)) * time.Second
}

// GetIndexFile returns the SQLite index filename inside the cache directory.
func (c *CacheConfig) GetIndexFile() string {
	return cmp.Or(c.IndexFile, DefaultIndexFile)
}

// GetRetention returns how long normalized media is kept before eviction.
func (c *CacheConfig) GetRetention() time.Duration {
	return time.Duration(cmp.Or(c.RetentionDays, DefaultRetentionDays)) * 24 * time.Hour
}

// GetMaxEntries returns the maximum number of index entries to retain.
func (c *CacheConfig) GetMaxEntries() int {
	return cmp.Or(c.MaxEntries, DefaultMaxEntries)
}

// GetTimeout returns the maximum duration for eviction runs.
func (c *CacheConfig) GetTimeout() time.Duration {
	return time.Duration(cmp.Or(c.TimeoutMinutes, DefaultEvictionTimeoutMin)) * time.Minute
}

// GetLevel returns the configured log level as an slog.Level.
func (c *LogConfig) GetLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetFormat returns the configured log format ("text" or "json").
func (c *LogConfig) GetFormat() string {
	if strings.EqualFold(c.Format, "json") {
		return "json"
	}
	return "text"
}

// Load loads and validates application configuration from a JSON file.
func Load(configPath string) (*Config, error) {
	config := &Config{}

	if configPath == "" {
		if _, err := os.Stat("config.json"); err == nil {
			configPath = "config.json"
		} else {
			return nil, fmt.Errorf("config file config.json not found")
		}
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // config path is validated via CLI flag or default
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config file error: %w", err)
	}

	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		config.Log.Level = envLevel
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}

	return config, nil
}

// configValidator is the singleton validator instance with custom validations.
var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterStructValidation(validateS3Config, S3Config{})

	return v
}

// validateS3Config checks that S3 has either a region or custom endpoint when enabled.
func validateS3Config(sl validator.StructLevel) {
	s3 := sl.Current().Interface().(S3Config)
	if !s3.Enabled {
		return
	}
	if s3.Region == "" && s3.Endpoint == "" {
		sl.ReportError(s3.Region, "region", "Region", "required_without_endpoint", "")
	}
}

// validate validates the configuration using struct tags and struct-level validators.
func validate(config *Config) error {
	if err := configValidator.Struct(config); err != nil {
		return formatErrors(err)
	}
	return nil
}

// formatErrors converts validator errors to user-friendly messages.
func formatErrors(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	var msgs []string
	for _, e := range ve {
		field := strings.ToLower(e.Namespace()[7:]) // Strip "Config." prefix
		msgs = append(msgs, fmt.Sprintf("%s %s", field, tagMessage(e.Tag(), e.Param())))
	}

	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// tagMessage returns an English message for a validation tag.
func tagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "required_if":
		return "is required when enabled"
	case "required_without_endpoint":
		return "is required when no endpoint is specified"
	case "url":
		return "must be a valid URL"
	case "gt":
		return fmt.Sprintf("must be greater than %s", param)
	case "gte":
		return fmt.Sprintf("must be %s or greater", param)
	case "min":
		return fmt.Sprintf("must be at least %s", param)
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", param)
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", param)
	default:
		return fmt.Sprintf("is invalid (%s)", tag)
	}
}
