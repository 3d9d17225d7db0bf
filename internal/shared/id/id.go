// Package id provides prefixed ULID generation for the profile daemon.
//
// IDs are lexicographically sortable by creation time, which keeps refresh
// tick IDs in log order, and carry a short prefix so a log line shows at a
// glance what kind of object it refers to (ldr_*, tick_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// LoaderID identifies one profile loader instance
type LoaderID string

// TickID identifies one refresh attempt of a loader
type TickID string

const (
	LoaderPrefix = "ldr"
	TickPrefix   = "tick"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with monotonic, cryptographically secure entropy.
// IDs generated within the same millisecond still sort in generation order.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewLoaderID generates a new loader ID
func NewLoaderID() LoaderID {
	return LoaderID(Default().GenerateWithPrefix(LoaderPrefix))
}

// NewTickID generates a new refresh tick ID
func NewTickID() TickID {
	return TickID(Default().GenerateWithPrefix(TickPrefix))
}

func (id LoaderID) String() string { return string(id) }
func (id TickID) String() string   { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Split separates a prefixed ID into prefix and ULID.
// ok is false when the ID has no prefix or the ULID part is invalid.
func Split(prefixed string) (prefix string, u ulid.ULID, ok bool) {
	prefix, rest, found := strings.Cut(prefixed, "_")
	if !found {
		return "", ulid.ULID{}, false
	}
	parsed, err := ulid.Parse(rest)
	if err != nil {
		return "", ulid.ULID{}, false
	}
	return prefix, parsed, true
}

// Timestamp extracts the creation time of a plain or prefixed ID
func Timestamp(id string) (time.Time, error) {
	if _, u, ok := Split(id); ok {
		return ulid.Time(u.Time()), nil
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
