package profile

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/profiled/internal/shared/types"
)

var (
	// ErrLoaderClosed is returned by Refresh after Close
	ErrLoaderClosed = errors.New("profile loader closed")
	// ErrRefreshPanic wraps a panic recovered inside a refresh tick
	ErrRefreshPanic = errors.New("refresh tick panicked")
	// ErrInvalidParams is returned by constructors given incomplete params
	ErrInvalidParams = errors.New("invalid loader params")
)

// Loader is implemented by every profile source
type Loader interface {
	Description() types.ProfileDescription
	// LoadConfig materializes the current profile
	LoadConfig(ctx context.Context) (types.ConfigResult[types.AppConfig], error)
	// SetActive tells the loader whether its profile is the selected one
	SetActive(active bool)
	// Close releases background resources. It is safe to call more than once.
	Close() error
}

// Refresher is implemented by loaders that cache a raw document
type Refresher interface {
	// Refresh reloads the raw document now and reports whether the cache
	// was replaced
	Refresh(ctx context.Context) (bool, error)
	// Cached returns a copy of the cached raw result
	Cached() types.ConfigResult[types.ConfigDocument]
}

var (
	_ Loader    = (*PlatformLoader)(nil)
	_ Refresher = (*PlatformLoader)(nil)
	_ Loader    = (*LocalLoader)(nil)
	_ Refresher = (*LocalLoader)(nil)
)
