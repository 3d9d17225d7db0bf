package ide

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		content  *string
		expected Settings
		wantErr  bool
	}{
		{
			name:     "missing file uses defaults",
			expected: DefaultSettings(),
		},
		{
			name:    "partial file keeps defaults",
			content: strPtr("remote_config_server_url = \"https://config.example.com\"\n"),
			expected: Settings{
				EnableTelemetry:        true,
				RemoteConfigServerURL:  "https://config.example.com",
				RemoteConfigSyncPeriod: 60,
			},
		},
		{
			name:    "telemetry disabled",
			content: strPtr("enable_telemetry = false\nremote_config_sync_period = 5\n"),
			expected: Settings{
				EnableTelemetry:        false,
				RemoteConfigSyncPeriod: 5,
			},
		},
		{
			name:     "malformed file",
			content:  strPtr("enable_telemetry = [nope"),
			expected: DefaultSettings(),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o600))
			}

			got, err := LoadSettings(path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLoadSettingsEmptyPath(t *testing.T) {
	got, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), got)
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	want := Settings{EnableTelemetry: false, RemoteConfigServerURL: "https://x", RemoteConfigSyncPeriod: 10}

	require.NoError(t, SaveSettings(path, want))
	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSettingsPromise(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		p := ResolvedSettings(Settings{RemoteConfigServerURL: "u"})
		assert.True(t, p.Resolved())

		s, err := p.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u", s.RemoteConfigServerURL)
	})

	t.Run("resolves later", func(t *testing.T) {
		release := make(chan struct{})
		p := NewSettingsPromise(context.Background(), func(context.Context) (Settings, error) {
			<-release
			return Settings{EnableTelemetry: true}, nil
		})
		assert.False(t, p.Resolved())

		close(release)
		s, err := p.Await(context.Background())
		require.NoError(t, err)
		assert.True(t, s.EnableTelemetry)
	})

	t.Run("propagates error", func(t *testing.T) {
		boom := errors.New("boom")
		p := NewSettingsPromise(context.Background(), func(context.Context) (Settings, error) {
			return Settings{}, boom
		})

		_, err := p.Await(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("await honors context", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		p := NewSettingsPromise(context.Background(), func(context.Context) (Settings, error) {
			<-release
			return Settings{}, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := p.Await(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func strPtr(s string) *string { return &s }
