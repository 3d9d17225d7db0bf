package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var (
	// ErrMissingProfile indicates the profile identity is incomplete
	ErrMissingProfile = errors.New("missing profile identity")

	// ErrInvalidVersionPolicy indicates an unsupported version policy
	ErrInvalidVersionPolicy = errors.New("invalid version policy")

	// ErrInvalidInterval indicates a non-positive reload interval
	ErrInvalidInterval = errors.New("invalid reload interval")
)

// Version policies accepted by ProfileConfig.VersionPolicy
const (
	PolicyTrackLatest = "track-latest"
	PolicyPinVersion  = "pin-version"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	ControlPlane ControlPlaneConfig
	Profile      ProfileConfig
	IDE          IDEConfig
	Storage      StorageConfig
	Logging      LogConfig
	RateLimit    RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8040"`
	Host            string        `envconfig:"HOST" default:"127.0.0.1"`
	AllowOrigins    []string      `envconfig:"CORS_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// ControlPlaneConfig holds control-plane client configuration.
type ControlPlaneConfig struct {
	URL              string        `envconfig:"CONTROL_PLANE_URL" default:"https://api.continue.dev"`
	APIKey           string        `envconfig:"CONTROL_PLANE_API_KEY"`
	Timeout          time.Duration `envconfig:"CONTROL_PLANE_TIMEOUT" default:"30s"`
	RetryMax         int           `envconfig:"CONTROL_PLANE_RETRY_MAX" default:"3"`
	RequestsPerSec   float64       `envconfig:"CONTROL_PLANE_RPS" default:"0"`
	BreakerThreshold uint32        `envconfig:"CONTROL_PLANE_BREAKER_THRESHOLD" default:"5"`
	BreakerTimeout   time.Duration `envconfig:"CONTROL_PLANE_BREAKER_TIMEOUT" default:"30s"`
}

// ProfileConfig identifies the profile this daemon keeps fresh.
type ProfileConfig struct {
	OwnerSlug      string        `envconfig:"PROFILE_OWNER"`
	PackageSlug    string        `envconfig:"PROFILE_PACKAGE"`
	VersionSlug    string        `envconfig:"PROFILE_VERSION" default:"latest"`
	ReloadInterval time.Duration `envconfig:"PROFILE_RELOAD_INTERVAL" default:"15m"`
	VersionPolicy  string        `envconfig:"PROFILE_VERSION_POLICY" default:"track-latest"`
	LocalGlob      string        `envconfig:"PROFILE_LOCAL_GLOB"`
}

// IDEConfig locates the IDE-side inputs.
type IDEConfig struct {
	SettingsFile string `envconfig:"IDE_SETTINGS_FILE"`
	WorkspaceDir string `envconfig:"IDE_WORKSPACE_DIR" default:"."`
	Name         string `envconfig:"IDE_NAME" default:"profiled"`
}

// StorageConfig holds snapshot storage configuration.
type StorageConfig struct {
	SnapshotDir string `envconfig:"SNAPSHOT_DIR" default:"/tmp/profiled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds HTTP API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8040",
			Host:            "127.0.0.1",
			AllowOrigins:    []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		ControlPlane: ControlPlaneConfig{
			URL:              "https://api.continue.dev",
			Timeout:          30 * time.Second,
			RetryMax:         3,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Profile: ProfileConfig{
			VersionSlug:    "latest",
			ReloadInterval: 15 * time.Minute,
			VersionPolicy:  PolicyTrackLatest,
		},
		IDE: IDEConfig{
			WorkspaceDir: ".",
			Name:         "profiled",
		},
		Storage: StorageConfig{
			SnapshotDir: "/tmp/profiled",
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}

// Validate checks the fields the daemon cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Profile.LocalGlob == "" && (c.Profile.OwnerSlug == "" || c.Profile.PackageSlug == "") {
		errs = append(errs, fmt.Errorf("%w: set PROFILE_OWNER and PROFILE_PACKAGE or PROFILE_LOCAL_GLOB", ErrMissingProfile))
	}

	switch strings.ToLower(c.Profile.VersionPolicy) {
	case PolicyTrackLatest, PolicyPinVersion:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidVersionPolicy, c.Profile.VersionPolicy))
	}

	if c.Profile.ReloadInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidInterval, c.Profile.ReloadInterval))
	}

	return errors.Join(errs...)
}
