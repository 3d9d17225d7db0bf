// Package middleware holds the gin middleware stack of the profile API:
// recovery, request IDs, request logging, CORS and per-client rate limits.
package middleware
