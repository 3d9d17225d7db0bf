package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	temp := 0.5
	result := types.ConfigResult[types.ConfigDocument]{
		Config: &types.ConfigDocument{
			Name:    "Agent",
			Version: "1.0.0",
			Models: []types.ModelBlock{{
				Name: "GPT", Provider: "openai", Model: "gpt-4o",
				CompletionOptions: &types.CompletionOptions{Temperature: &temp},
			}},
		},
		Errors: []types.ConfigError{{Message: "warn"}},
	}

	require.NoError(t, s.Save("acme", "agent", "1.0", result))

	snap, err := s.Load("acme", "agent")
	require.NoError(t, err)
	assert.Equal(t, "acme", snap.OwnerSlug)
	assert.Equal(t, "1.0", snap.VersionSlug)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), snap.SavedAt)
	assert.Equal(t, result, snap.Result)
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load("acme", "nothing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path("acme", "agent"), []byte("not zstd"), 0o600))

	_, err := s.Load("acme", "agent")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSaveOverwritesAtomically(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"v1", "v2"} {
		require.NoError(t, s.Save("acme", "agent", "1.0", types.ConfigResult[types.ConfigDocument]{
			Config: &types.ConfigDocument{Name: name},
		}))
	}

	snap, err := s.Load("acme", "agent")
	require.NoError(t, err)
	assert.Equal(t, "v2", snap.Result.Config.Name)

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "acme__agent.snap", entries[0].Name())
}

func TestPathSanitizesSlugs(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, filepath.Join(s.dir, "ac_me__.._pkg.snap"), s.Path("ac/me", "../pkg"))
}

func TestBootstrap(t *testing.T) {
	s := newTestStore(t)

	initial, found, err := s.Bootstrap("acme", "agent", "")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, initial.Config)
	assert.Empty(t, initial.Errors)
	assert.True(t, initial.ConfigLoadInterrupted)

	require.NoError(t, s.Save("acme", "agent", "1.0", types.ConfigResult[types.ConfigDocument]{
		Config: &types.ConfigDocument{Name: "saved"},
		Errors: []types.ConfigError{},
	}))

	initial, found, err = s.Bootstrap("acme", "agent", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "saved", initial.Config.Name)
	assert.False(t, initial.ConfigLoadInterrupted)
}

func TestBootstrapCorrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path("acme", "agent"), []byte("garbage"), 0o600))

	initial, found, err := s.Bootstrap("acme", "agent", "")

	require.Error(t, err)
	assert.False(t, found)
	assert.Nil(t, initial.Config)
	assert.True(t, initial.ConfigLoadInterrupted)
}

func TestBootstrapPinnedVersion(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("acme", "agent", "1.0", types.ConfigResult[types.ConfigDocument]{
		Config: &types.ConfigDocument{Name: "saved"},
		Errors: []types.ConfigError{},
	}))

	initial, found, err := s.Bootstrap("acme", "agent", "1.0")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "saved", initial.Config.Name)

	initial, found, err = s.Bootstrap("acme", "agent", "2.0")
	require.ErrorIs(t, err, ErrSnapshotVersion)
	assert.False(t, found)
	assert.Nil(t, initial.Config)
	assert.Empty(t, initial.Errors)
	assert.True(t, initial.ConfigLoadInterrupted)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("acme", "agent", "1.0", types.ConfigResult[types.ConfigDocument]{ConfigLoadInterrupted: true}))

	require.NoError(t, s.Delete("acme", "agent"))
	require.NoError(t, s.Delete("acme", "agent"))

	_, err := s.Load("acme", "agent")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
