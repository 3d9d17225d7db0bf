package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assistantsBody = `[
  {
    "ownerSlug": "acme",
    "packageSlug": "agent",
    "versionSlug": "1.2.0",
    "configResult": {
      "config": {"name": "Agent", "version": "1.2.0", "models": [{"name": "gpt", "provider": "openai", "model": "gpt-4o"}]},
      "errors": [{"fatal": false, "message": "deprecated field"}],
      "configLoadInterrupted": false
    }
  },
  {"ownerSlug": "acme", "packageSlug": "empty"}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{
		BaseURL:          server.URL + "/",
		APIKey:           "secret-key",
		Timeout:          5 * time.Second,
		RetryMax:         2,
		RetryWaitMin:     time.Millisecond,
		RetryWaitMax:     5 * time.Millisecond,
		BreakerThreshold: 2,
		BreakerTimeout:   time.Minute,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg)
}

func TestListAssistants(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ide/list-assistants", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(assistantsBody))
	})

	assistants, err := client.ListAssistants(context.Background())
	require.NoError(t, err)
	require.Len(t, assistants, 2)

	first := assistants[0]
	assert.True(t, first.Matches("acme", "agent"))
	assert.Equal(t, "1.2.0", first.VersionSlug)
	require.NotNil(t, first.ConfigResult)
	require.NotNil(t, first.ConfigResult.Config)
	assert.Equal(t, "Agent", first.ConfigResult.Config.Name)
	require.Len(t, first.ConfigResult.Config.Models, 1)
	assert.Equal(t, "gpt-4o", first.ConfigResult.Config.Models[0].Model)
	assert.Equal(t, "deprecated field", first.ConfigResult.Errors[0].Message)

	assert.Nil(t, assistants[1].ConfigResult)
}

func TestResolveSecrets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ide/sync-secrets", r.URL.Path)

		var body syncSecretsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"acme/agent/OPENAI_KEY", "acme/agent/MISSING"}, body.FQSNs)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"fqsn":"acme/agent/OPENAI_KEY","value":"sk-1","found":true},{"fqsn":"acme/agent/MISSING","found":false}]`))
	})

	results, err := client.ResolveSecrets(context.Background(), []string{"acme/agent/OPENAI_KEY", "acme/agent/MISSING"})
	require.NoError(t, err)
	assert.Equal(t, []SecretResult{
		{FQSN: "acme/agent/OPENAI_KEY", Value: "sk-1", Found: true},
		{FQSN: "acme/agent/MISSING", Found: false},
	}, results)
}

func TestResolveSecretsEmptySkipsCall(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	results, err := client.ResolveSecrets(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Zero(t, calls.Load())
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, expected: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, expected: ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, expected: ErrBadResponse},
		{name: "server error", status: http.StatusBadGateway, expected: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.ListAssistants(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
		})
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	assistants, err := client.ListAssistants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assistants)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMalformedBodyIsBadResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := client.ListAssistants(context.Background())
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Equal(t, resilience.StateClosed, client.BreakerState())
}

func TestBreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) { cfg.RetryMax = 0 })

	for i := 0; i < 2; i++ {
		_, err := client.ListAssistants(context.Background())
		require.ErrorIs(t, err, ErrUnavailable)
	}
	require.Equal(t, resilience.StateOpen, client.BreakerState())

	_, err := client.ListAssistants(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestUnauthorizedDoesNotTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	for i := 0; i < 5; i++ {
		_, err := client.ListAssistants(context.Background())
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	assert.Equal(t, resilience.StateClosed, client.BreakerState())
}

func TestCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListAssistants(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetricsRecorded(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	client := New(Config{BaseURL: server.URL}, WithMetrics(metrics))
	_, err := client.ListAssistants(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ControlPlaneCalls.WithLabelValues(opListAssistants, "success")))
}
