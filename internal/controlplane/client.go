package controlplane

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	opListAssistants = "list_assistants"
	opSyncSecrets    = "sync_secrets"
)

// Config configures a control plane client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// RetryMax is the number of retries after the first attempt
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// RPS limits outgoing requests; zero or less means unlimited
	RPS float64

	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// Option configures optional client collaborators
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(logger) }
}

// WithMetrics records call counts and durations
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// Client talks to the control plane over HTTP
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// New creates a control plane client
func New(cfg Config, opts ...Option) *Client {
	c := &Client{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 10 * time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = logging.NewLeveled(c.logger.Named("retry"))
	// Hand the final response back so its status can be classified
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c.resty = resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "profiled/1.0").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if cfg.APIKey != "" {
		c.resty.SetAuthToken(cfg.APIKey)
	}

	if cfg.RPS <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS)))
	}

	threshold := cfg.BreakerThreshold
	c.breaker = resilience.New("control-plane", resilience.Settings{
		MaxRequests:  1,
		Timeout:      cfg.BreakerTimeout,
		ReadyToTrip:  func(counts resilience.Counts) bool { return counts.ConsecutiveFailures >= threshold },
		IsSuccessful: func(err error) bool { return !countsAsFailure(err) },
		OnStateChange: func(name string, from, to resilience.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return c
}

// ListAssistants returns every assistant visible to the caller
func (c *Client) ListAssistants(ctx context.Context) ([]types.Assistant, error) {
	var out []types.Assistant
	err := c.call(ctx, opListAssistants, func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&out).Get("/ide/list-assistants")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveSecrets looks up fully qualified secret names
func (c *Client) ResolveSecrets(ctx context.Context, fqsns []string) ([]SecretResult, error) {
	if len(fqsns) == 0 {
		return nil, nil
	}

	var out []SecretResult
	err := c.call(ctx, opSyncSecrets, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(syncSecretsRequest{FQSNs: fqsns}).SetResult(&out).Post("/ide/sync-secrets")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) call(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) error {
	timer := monitoring.NewTimer(c.metrics, op)

	if err := c.limiter.Wait(ctx); err != nil {
		timer.Stop("error")
		return fmt.Errorf("%s: rate limit: %w", op, err)
	}

	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := send(c.resty.R().SetContext(ctx).ForceContentType("application/json"))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A response that arrived but failed to decode is not an outage
			if resp != nil && resp.RawResponse != nil && resp.IsSuccess() {
				return fmt.Errorf("%s: %w: %w", op, ErrBadResponse, err)
			}
			return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		}
		if resp.IsError() {
			return &StatusError{Operation: op, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 256)}
		}
		return nil
	})

	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	if err != nil {
		timer.Stop("error")
		c.logger.Debug("Control plane call failed", zap.String("operation", op), zap.Error(err))
		return err
	}
	timer.Stop("success")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
