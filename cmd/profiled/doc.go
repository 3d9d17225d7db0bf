// Command profiled keeps one assistant profile fresh and serves its
// materialized configuration over HTTP.
//
// The profile is either published on the control plane (PROFILE_OWNER and
// PROFILE_PACKAGE) or a local YAML file (PROFILE_LOCAL_GLOB or -local). All
// other settings come from the environment; see internal/infrastructure/config.
package main
