// Package controlplane is the HTTP client for the remote assistant directory.
//
// Built on go-resty/resty over a hashicorp/go-retryablehttp transport:
//   - Automatic retries with exponential backoff on 5xx and connection errors
//   - Per-client rate limiting (golang.org/x/time/rate)
//   - Circuit breaker around every call
//   - Bearer authentication
//
// Example Usage:
//
//	client := controlplane.New(controlplane.Config{
//		BaseURL: "https://api.continue.dev",
//		APIKey:  key,
//	}, controlplane.WithLogger(logger))
//	assistants, err := client.ListAssistants(ctx)
package controlplane
