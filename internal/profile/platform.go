package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/profiled/internal/controlplane"
	"github.com/GriffinCanCode/profiled/internal/ide"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/materialize"
	"github.com/GriffinCanCode/profiled/internal/render"
	"github.com/GriffinCanCode/profiled/internal/shared/id"
	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"go.uber.org/zap"
)

// PlatformParams are the collaborators of a PlatformLoader. They are held
// for the loader's lifetime.
type PlatformParams struct {
	// Initial is used as-is until the first refresh commits
	Initial     types.ConfigResult[types.ConfigDocument]
	OwnerSlug   string
	PackageSlug string
	// VersionSlug is for display unless the PinVersion policy is used
	VersionSlug string
	Client      controlplane.API
	IDE         ide.IDE
	Settings    *ide.SettingsPromise
	LogWriter   materialize.LogWriter
	// OnReload is called after every refresh that replaced the cache
	OnReload func()
}

// PlatformLoader serves a profile published on the control plane
type PlatformLoader struct {
	id          id.LoaderID
	description types.ProfileDescription
	params      PlatformParams
	opts        options
	logger      *zap.Logger

	mu        sync.RWMutex
	cached    types.ConfigResult[types.ConfigDocument]
	committed uint64

	seq    atomic.Uint64
	closed atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewPlatformLoader creates a loader and starts its refresh timer. No
// refresh runs until the first interval elapses.
func NewPlatformLoader(params PlatformParams, opts ...Option) (*PlatformLoader, error) {
	if params.OwnerSlug == "" || params.PackageSlug == "" {
		return nil, fmt.Errorf("%w: owner and package slugs are required", ErrInvalidParams)
	}
	if params.Client == nil {
		return nil, fmt.Errorf("%w: control plane client is required", ErrInvalidParams)
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
	description := types.NewPlatformDescription(params.OwnerSlug, params.PackageSlug, params.VersionSlug, params.Initial.Errors)

	ctx, cancel := context.WithCancel(context.Background())
	l := &PlatformLoader{
		id:          loaderID,
		description: description,
		params:      params,
		opts:        o,
		logger: o.logger.Named("profile").With(
			zap.String("profile", description.ID),
			zap.String("loader", loaderID.String()),
		),
		cached: params.Initial.Clone(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go l.run()

	l.logger.Info("Platform profile loader started",
		zap.String("version", params.VersionSlug),
		zap.Duration("interval", o.interval),
		zap.String("policy", string(o.policy)))

	return l, nil
}

// ID returns the loader instance id
func (l *PlatformLoader) ID() id.LoaderID {
	return l.id
}

// Description returns the profile description captured at construction
func (l *PlatformLoader) Description() types.ProfileDescription {
	d := l.description
	d.Errors = types.CloneErrors(d.Errors)
	return d
}

// Cached returns a copy of the cached raw result
func (l *PlatformLoader) Cached() types.ConfigResult[types.ConfigDocument] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cached.Clone()
}

// SetActive does nothing: the refresh timer runs whether or not the profile
// is selected.
func (l *PlatformLoader) SetActive(bool) {}

// Close stops the refresh timer, cancels an in-flight tick and waits for the
// loop to exit
func (l *PlatformLoader) Close() error {
	l.closeOnce.Do(func() {
		// Set under mu so a concurrent commit sees it
		l.mu.Lock()
		l.closed.Store(true)
		l.mu.Unlock()
		l.cancel()
		<-l.done
		l.logger.Info("Platform profile loader stopped")
	})
	return nil
}

func (l *PlatformLoader) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			// A tick may not outlive the interval
			ctx, cancel := context.WithTimeout(l.ctx, l.opts.interval)
			_, _ = l.Refresh(ctx)
			cancel()
		}
	}
}

// Refresh runs one refresh tick. Errors and panics are logged and returned;
// the cache is only replaced by a successful tick newer than the last one
// committed.
func (l *PlatformLoader) Refresh(ctx context.Context) (replaced bool, err error) {
	if l.closed.Load() {
		return false, ErrLoaderClosed
	}

	seq := l.seq.Add(1)
	logger := l.logger.With(zap.String("tick", id.NewTickID().String()), zap.Uint64("seq", seq))
	start := time.Now()
	outcome := monitoring.OutcomeFailed

	defer func() {
		if r := recover(); r != nil {
			replaced = false
			outcome = monitoring.OutcomeFailed
			err = fmt.Errorf("%w: %v", ErrRefreshPanic, r)
			logger.Error("Refresh tick panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		l.observe(logger, outcome, err, time.Since(start))
	}()

	outcome, err = l.tick(ctx, seq)
	return outcome == monitoring.OutcomeCommitted, err
}

func (l *PlatformLoader) tick(ctx context.Context, seq uint64) (string, error) {
	assistants, err := l.params.Client.ListAssistants(ctx)
	if err != nil {
		return monitoring.OutcomeFailed, fmt.Errorf("list assistants: %w", err)
	}

	match := l.find(assistants)
	if match == nil || match.ConfigResult == nil {
		return monitoring.OutcomeNoMatch, nil
	}
	if l.opts.policy == PinVersion && match.VersionSlug != l.params.VersionSlug {
		return monitoring.OutcomeVersionSkip, nil
	}

	var rendered *types.ConfigDocument
	if match.ConfigResult.Config != nil {
		text, err := render.Encode(match.ConfigResult.Config)
		if err != nil {
			return monitoring.OutcomeFailed, err
		}
		rendered, err = l.opts.renderer.Render(ctx, text)
		if err != nil {
			return monitoring.OutcomeFailed, fmt.Errorf("render: %w", err)
		}
	}

	next := types.ConfigResult[types.ConfigDocument]{
		Config:                rendered,
		Errors:                types.CloneErrors(match.ConfigResult.Errors),
		ConfigLoadInterrupted: false,
	}
	committed, err := l.commit(seq, next)
	if err != nil {
		return monitoring.OutcomeStale, err
	}
	if !committed {
		return monitoring.OutcomeStale, nil
	}

	if l.params.OnReload != nil {
		l.params.OnReload()
	}
	return monitoring.OutcomeCommitted, nil
}

func (l *PlatformLoader) find(assistants []types.Assistant) *types.Assistant {
	for i := range assistants {
		if assistants[i].Matches(l.params.OwnerSlug, l.params.PackageSlug) {
			return &assistants[i]
		}
	}
	return nil
}

// commit replaces the cache unless a newer tick already has. A closed
// loader keeps its cache.
func (l *PlatformLoader) commit(seq uint64, next types.ConfigResult[types.ConfigDocument]) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return false, ErrLoaderClosed
	}
	if seq <= l.committed {
		return false, nil
	}
	l.cached = next
	l.committed = seq
	return true, nil
}

func (l *PlatformLoader) observe(logger *zap.Logger, outcome string, err error, elapsed time.Duration) {
	l.opts.metrics.RecordRefresh(outcome, elapsed)

	switch outcome {
	case monitoring.OutcomeCommitted:
		cached := l.Cached()
		logger.Info("Profile refreshed",
			zap.Bool("has_config", cached.Config != nil),
			zap.Int("errors", len(cached.Errors)),
			zap.Duration("elapsed", elapsed))
	case monitoring.OutcomeStale:
		logger.Warn("Dropped stale refresh result", zap.Duration("elapsed", elapsed))
	case monitoring.OutcomeFailed:
		if err != nil && !errors.Is(err, ErrRefreshPanic) {
			logger.Error("Profile refresh failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		}
	default:
		logger.Debug("Profile refresh skipped", zap.String("outcome", outcome))
	}
}

// LoadConfig materializes the cached document. Cached errors are returned
// without materializing; errors reported by the materializer are dropped.
func (l *PlatformLoader) LoadConfig(ctx context.Context) (types.ConfigResult[types.AppConfig], error) {
	cached := l.Cached()
	if cached.HasErrors() {
		l.opts.metrics.RecordMaterialization(monitoring.PathCachedErrors)
		return types.ConfigResult[types.AppConfig]{
			Errors:                cached.Errors,
			ConfigLoadInterrupted: false,
		}, nil
	}

	result, err := l.opts.materializer.Materialize(ctx, materialize.Input{
		IDE:       l.params.IDE,
		Settings:  l.params.Settings,
		Client:    l.params.Client,
		LogWriter: l.params.LogWriter,
		Document:  cached.Config,
		Package: &types.PlatformConfigMetadata{
			OwnerSlug:   l.params.OwnerSlug,
			PackageSlug: l.params.PackageSlug,
		},
	})
	if err != nil {
		l.opts.metrics.RecordMaterialization(monitoring.PathFailed)
		return types.ConfigResult[types.AppConfig]{}, fmt.Errorf("materialize %s: %w", l.description.ID, err)
	}

	if len(result.Errors) > 0 {
		l.logger.Debug("Discarding materializer errors", zap.Int("count", len(result.Errors)))
	}
	result.Errors = []types.ConfigError{}

	l.opts.metrics.RecordMaterialization(monitoring.PathMaterialized)
	return result, nil
}
