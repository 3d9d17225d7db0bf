// Package types provides shared data structures for the profile daemon.
//
// This package defines the types passed between the control-plane client,
// the renderer, the materializer and the profile loaders, so none of those
// packages has to import another just to share a shape.
//
// Core Types:
//   - ConfigResult: Outcome of one configuration load attempt
//   - ConfigError: Error descriptor carried inside a ConfigResult
//   - ConfigDocument: Raw configuration document (YAML shape)
//   - AppConfig: Fully resolved application configuration
//
// Profile Types:
//   - ProfileDescription: Identity and display metadata of a profile
//   - FullSlug: owner/package/version coordinates
//   - Assistant: Control-plane record pairing a profile with its config
//
// Example Usage:
//
//	result := types.ConfigResult[types.ConfigDocument]{
//	    Errors: []types.ConfigError{{Fatal: true, Message: "missing models"}},
//	}
//	if result.HasErrors() {
//	    // surface result.Errors
//	}
package types
