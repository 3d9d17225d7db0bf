package profile

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/materialize"
	"github.com/GriffinCanCode/profiled/internal/render"
	"go.uber.org/zap"
)

// DefaultReloadInterval is how often a platform profile is refreshed
const DefaultReloadInterval = 15 * time.Minute

// VersionPolicy decides which published version a platform loader follows
type VersionPolicy string

const (
	// TrackLatest accepts whatever version the control plane currently
	// publishes for the owner and package
	TrackLatest VersionPolicy = "track-latest"
	// PinVersion only accepts entries whose version matches the loader's
	PinVersion VersionPolicy = "pin-version"
)

// ParseVersionPolicy parses a policy name; empty means TrackLatest
func ParseVersionPolicy(s string) (VersionPolicy, error) {
	switch VersionPolicy(s) {
	case "", TrackLatest:
		return TrackLatest, nil
	case PinVersion:
		return PinVersion, nil
	default:
		return "", fmt.Errorf("%w: unknown version policy %q", ErrInvalidParams, s)
	}
}

type options struct {
	interval     time.Duration
	policy       VersionPolicy
	logger       *zap.Logger
	metrics      *monitoring.Metrics
	renderer     render.Renderer
	materializer materialize.Materializer
}

func defaultOptions() options {
	return options{
		interval: DefaultReloadInterval,
		policy:   TrackLatest,
		logger:   zap.NewNop(),
	}
}

func (o options) validate() error {
	if o.interval <= 0 {
		return fmt.Errorf("%w: reload interval must be positive, got %s", ErrInvalidParams, o.interval)
	}
	if _, err := ParseVersionPolicy(string(o.policy)); err != nil {
		return err
	}
	return nil
}

// Option configures a loader
type Option func(*options)

// WithReloadInterval overrides DefaultReloadInterval
func WithReloadInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithVersionPolicy sets the version policy; the default is TrackLatest
func WithVersionPolicy(p VersionPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the loader logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logging.OrNop(logger) }
}

// WithMetrics records refresh and materialization metrics
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithRenderer replaces the template renderer built from the loader params
func WithRenderer(r render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithMaterializer replaces the default materializer
func WithMaterializer(m materialize.Materializer) Option {
	return func(o *options) { o.materializer = m }
}
