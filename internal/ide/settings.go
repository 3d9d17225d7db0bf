package ide

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Settings are the user's persisted IDE settings
type Settings struct {
	EnableTelemetry           bool   `toml:"enable_telemetry" json:"enableTelemetry"`
	RemoteConfigServerURL     string `toml:"remote_config_server_url" json:"remoteConfigServerUrl,omitempty"`
	RemoteConfigSyncPeriod    int    `toml:"remote_config_sync_period" json:"remoteConfigSyncPeriod"`
	UserToken                 string `toml:"user_token" json:"-"`
	PauseCodebaseIndexOnStart bool   `toml:"pause_codebase_index_on_start" json:"pauseCodebaseIndexOnStart"`
}

// DefaultSettings returns settings used when no file exists
func DefaultSettings() Settings {
	return Settings{
		EnableTelemetry:        true,
		RemoteConfigSyncPeriod: 60,
	}
}

// LoadSettings reads a TOML settings file. An empty path or a missing file
// yields DefaultSettings; keys absent from the file keep their defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}

	if err := toml.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("parse settings %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings writes settings as TOML
func SaveSettings(path string, settings Settings) error {
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// SettingsPromise is a settings value that becomes available later.
// It resolves exactly once.
type SettingsPromise struct {
	done     chan struct{}
	once     sync.Once
	settings Settings
	err      error
}

// NewSettingsPromise starts fn in the background and resolves with its result
func NewSettingsPromise(ctx context.Context, fn func(ctx context.Context) (Settings, error)) *SettingsPromise {
	p := &SettingsPromise{done: make(chan struct{})}
	go func() {
		s, err := fn(ctx)
		p.resolve(s, err)
	}()
	return p
}

// ResolvedSettings returns a promise that is already resolved
func ResolvedSettings(s Settings) *SettingsPromise {
	p := &SettingsPromise{done: make(chan struct{})}
	p.resolve(s, nil)
	return p
}

// LoadSettingsAsync reads path in the background
func LoadSettingsAsync(ctx context.Context, path string) *SettingsPromise {
	return NewSettingsPromise(ctx, func(context.Context) (Settings, error) {
		return LoadSettings(path)
	})
}

func (p *SettingsPromise) resolve(s Settings, err error) {
	p.once.Do(func() {
		p.settings = s
		p.err = err
		close(p.done)
	})
}

// Await blocks until the promise resolves or ctx is done
func (p *SettingsPromise) Await(ctx context.Context) (Settings, error) {
	select {
	case <-p.done:
		return p.settings, p.err
	case <-ctx.Done():
		return Settings{}, ctx.Err()
	}
}

// Resolved reports whether Await would return without blocking
func (p *SettingsPromise) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
