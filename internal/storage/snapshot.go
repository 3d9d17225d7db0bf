// Package storage persists a platform loader's raw cache between restarts.
//
// Snapshots are JSON (bytedance/sonic) compressed with zstd and written
// atomically through a temp file and rename.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a profile
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotVersion is returned by Bootstrap when a snapshot was saved
	// for a different pinned version
	ErrSnapshotVersion = errors.New("snapshot version mismatch")
)

const snapshotExt = ".snap"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Snapshot is the persisted form of a loader cache
type Snapshot struct {
	OwnerSlug   string                                   `json:"ownerSlug"`
	PackageSlug string                                   `json:"packageSlug"`
	VersionSlug string                                   `json:"versionSlug"`
	SavedAt     time.Time                                `json:"savedAt"`
	Result      types.ConfigResult[types.ConfigDocument] `json:"result"`
}

// Store reads and writes snapshots in one directory
type Store struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	now     func() time.Time
}

// NewStore creates dir if needed and returns a store rooted there
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Store{dir: dir, encoder: encoder, decoder: decoder, now: time.Now}, nil
}

// Path returns the snapshot file for owner/pkg
func (s *Store) Path(owner, pkg string) string {
	name := unsafeChars.ReplaceAllString(owner, "_") + "__" + unsafeChars.ReplaceAllString(pkg, "_") + snapshotExt
	return filepath.Join(s.dir, name)
}

// Save writes the cache of owner/pkg
func (s *Store) Save(owner, pkg, version string, result types.ConfigResult[types.ConfigDocument]) error {
	snap := Snapshot{
		OwnerSlug:   owner,
		PackageSlug: pkg,
		VersionSlug: version,
		SavedAt:     s.now().UTC(),
		Result:      result,
	}

	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	compressed := s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))

	path := s.Path(owner, pkg)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot of owner/pkg
func (s *Store) Load(owner, pkg string) (*Snapshot, error) {
	compressed, err := os.ReadFile(s.Path(owner, pkg))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the snapshot of owner/pkg; a missing snapshot is not an error
func (s *Store) Delete(owner, pkg string) error {
	err := os.Remove(s.Path(owner, pkg))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close releases the codec resources
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

// Bootstrap returns the initial cache for owner/pkg: the stored result if a
// snapshot exists, otherwise an interrupted empty result. The bool reports
// whether a snapshot was found. A non-empty pinned version rejects snapshots
// saved for any other version. An unreadable or rejected snapshot yields the
// empty result together with the error.
func (s *Store) Bootstrap(owner, pkg, pinned string) (types.ConfigResult[types.ConfigDocument], bool, error) {
	empty := types.ConfigResult[types.ConfigDocument]{
		Errors:                []types.ConfigError{},
		ConfigLoadInterrupted: true,
	}

	snap, err := s.Load(owner, pkg)
	if errors.Is(err, ErrSnapshotNotFound) {
		return empty, false, nil
	}
	if err != nil {
		return empty, false, err
	}
	if pinned != "" && snap.VersionSlug != pinned {
		return empty, false, fmt.Errorf("%w: saved %q, pinned %q", ErrSnapshotVersion, snap.VersionSlug, pinned)
	}
	return snap.Result, true, nil
}
