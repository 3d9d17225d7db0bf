// Package ws streams profile lifecycle events (reloads and completed loads)
// to WebSocket clients, so an IDE can refetch the configuration without
// polling.
package ws
