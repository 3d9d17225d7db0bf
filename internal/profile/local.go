package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/profiled/internal/controlplane"
	"github.com/GriffinCanCode/profiled/internal/ide"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/materialize"
	"github.com/GriffinCanCode/profiled/internal/render"
	"github.com/GriffinCanCode/profiled/internal/shared/id"
	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// activateTimeout bounds the re-read triggered by SetActive
const activateTimeout = 30 * time.Second

// LocalParams are the collaborators of a LocalLoader
type LocalParams struct {
	Path string
	// Client may be nil; secrets then resolve from the IDE only
	Client    controlplane.API
	IDE       ide.IDE
	Settings  *ide.SettingsPromise
	LogWriter materialize.LogWriter
	OnReload  func()
}

// LocalLoader serves a profile stored in a YAML file. Unlike the platform
// loader it reports materializer errors, since nothing else validates a
// local file.
type LocalLoader struct {
	id          id.LoaderID
	description types.ProfileDescription
	params      LocalParams
	opts        options
	logger      *zap.Logger

	mu     sync.RWMutex
	cached types.ConfigResult[types.ConfigDocument]
	active bool
}

// NewLocalLoader creates a loader for params.Path and reads it once
func NewLocalLoader(ctx context.Context, params LocalParams, opts ...Option) (*LocalLoader, error) {
	if params.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidParams)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.renderer == nil {
		o.renderer = render.NewTemplateRenderer(params.IDE, params.Client, render.WithLogger(o.logger))
	}
	if o.materializer == nil {
		o.materializer = materialize.New(materialize.WithLogger(o.logger))
	}

	loaderID := id.NewLoaderID()
	description := localDescription(params.Path)
	l := &LocalLoader{
		id:          loaderID,
		description: description,
		params:      params,
		opts:        o,
		logger: o.logger.Named("profile").With(
			zap.String("profile", description.ID),
			zap.String("loader", loaderID.String()),
		),
	}

	if _, err := l.read(ctx); err != nil {
		return nil, err
	}
	l.description.Errors = l.Cached().Errors
	return l, nil
}

func localDescription(path string) types.ProfileDescription {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return types.ProfileDescription{
		ID:          path,
		ProfileType: types.ProfileTypeLocal,
		FullSlug: types.FullSlug{
			OwnerSlug:   "local",
			PackageSlug: name,
			VersionSlug: "local",
		},
		Title: name,
	}
}

// Description returns the profile description
func (l *LocalLoader) Description() types.ProfileDescription {
	d := l.description
	d.Errors = types.CloneErrors(d.Errors)
	return d
}

// Cached returns a copy of the cached raw result
func (l *LocalLoader) Cached() types.ConfigResult[types.ConfigDocument] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cached.Clone()
}

// Active reports the last value passed to SetActive
func (l *LocalLoader) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// SetActive records the activation state. Activating re-reads the file so
// edits made while another profile was selected are picked up.
func (l *LocalLoader) SetActive(active bool) {
	l.mu.Lock()
	l.active = active
	l.mu.Unlock()

	if !active {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), activateTimeout)
	defer cancel()
	if _, err := l.Refresh(ctx); err != nil {
		l.logger.Warn("Failed to re-read profile on activation", zap.Error(err))
	}
}

// Refresh re-reads the file. Read and render problems are stored in the
// cache as fatal errors; only a cancelled ctx is returned as an error.
func (l *LocalLoader) Refresh(ctx context.Context) (bool, error) {
	return l.read(ctx)
}

func (l *LocalLoader) read(ctx context.Context) (bool, error) {
	start := time.Now()
	next, err := l.load(ctx)
	if err != nil {
		l.opts.metrics.RecordRefresh(monitoring.OutcomeFailed, time.Since(start))
		return false, err
	}

	l.mu.Lock()
	l.cached = next
	l.mu.Unlock()

	l.opts.metrics.RecordRefresh(monitoring.OutcomeCommitted, time.Since(start))
	if next.HasErrors() {
		l.logger.Warn("Local profile has errors", zap.String("errors", types.JoinErrors(next.Errors)))
	} else {
		l.logger.Debug("Local profile loaded")
	}

	if l.params.OnReload != nil {
		l.params.OnReload()
	}
	return true, nil
}

func (l *LocalLoader) load(ctx context.Context) (types.ConfigResult[types.ConfigDocument], error) {
	fatal := func(format string, args ...any) types.ConfigResult[types.ConfigDocument] {
		return types.ConfigResult[types.ConfigDocument]{
			Errors: []types.ConfigError{{Fatal: true, Message: fmt.Sprintf(format, args...)}},
		}
	}

	data, err := os.ReadFile(l.params.Path)
	if err != nil {
		return fatal("read %s: %v", l.params.Path, err), nil
	}

	doc, err := l.opts.renderer.Render(ctx, string(data))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return types.ConfigResult[types.ConfigDocument]{}, err
		}
		return fatal("render %s: %v", l.params.Path, err), nil
	}
	return types.ConfigResult[types.ConfigDocument]{Config: doc, Errors: []types.ConfigError{}}, nil
}

// LoadConfig materializes the cached document and returns the
// materializer's errors with it
func (l *LocalLoader) LoadConfig(ctx context.Context) (types.ConfigResult[types.AppConfig], error) {
	cached := l.Cached()
	if cached.HasErrors() {
		l.opts.metrics.RecordMaterialization(monitoring.PathCachedErrors)
		return types.ConfigResult[types.AppConfig]{Errors: cached.Errors}, nil
	}

	result, err := l.opts.materializer.Materialize(ctx, materialize.Input{
		IDE:       l.params.IDE,
		Settings:  l.params.Settings,
		Client:    l.params.Client,
		LogWriter: l.params.LogWriter,
		Document:  cached.Config,
	})
	if err != nil {
		l.opts.metrics.RecordMaterialization(monitoring.PathFailed)
		return types.ConfigResult[types.AppConfig]{}, fmt.Errorf("materialize %s: %w", l.description.ID, err)
	}

	l.opts.metrics.RecordMaterialization(monitoring.PathMaterialized)
	return result, nil
}

// Close is a no-op; a local loader owns no background work
func (l *LocalLoader) Close() error {
	return nil
}

// DiscoverLocal returns the files matching a doublestar pattern such as
// "~/.continue/assistants/**/*.yaml", sorted
func DiscoverLocal(pattern string) ([]string, error) {
	if strings.HasPrefix(pattern, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home: %w", err)
		}
		pattern = filepath.Join(home, pattern[2:])
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
