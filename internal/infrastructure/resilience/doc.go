/*
Package resilience provides the circuit breaker guarding control-plane calls.

# Overview

A refresh tick that keeps hammering an unavailable control plane only adds
load and log noise. The breaker opens after repeated failures, fails calls
fast while open, and lets a limited number of trial calls through once its
timeout has passed.

# Usage

	breaker := resilience.New("controlplane", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
	})

	assistants, err := resilience.Execute(ctx, breaker, func(ctx context.Context) ([]Assistant, error) {
		return fetch(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open
*/
package resilience
