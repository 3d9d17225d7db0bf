package types

import "strings"

// ConfigError describes a single problem found while loading a configuration.
type ConfigError struct {
	Fatal   bool   `json:"fatal"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e ConfigError) Error() string {
	if e.Fatal {
		return "fatal: " + e.Message
	}
	return e.Message
}

// ConfigResult is the outcome of one load attempt.
//
// A result with a nil Config must carry Errors or have ConfigLoadInterrupted
// set; producers are responsible for keeping that true.
type ConfigResult[T any] struct {
	Config                *T            `json:"config,omitempty"`
	Errors                []ConfigError `json:"errors"`
	ConfigLoadInterrupted bool          `json:"configLoadInterrupted"`
}

// HasErrors reports whether the result carries at least one error
func (r ConfigResult[T]) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasFatalErrors reports whether any carried error is fatal
func (r ConfigResult[T]) HasFatalErrors() bool {
	for _, e := range r.Errors {
		if e.Fatal {
			return true
		}
	}
	return false
}

// Clone returns a copy whose Errors slice does not alias the receiver's.
// The Config pointer is shared; documents are treated as immutable once cached.
func (r ConfigResult[T]) Clone() ConfigResult[T] {
	return ConfigResult[T]{
		Config:                r.Config,
		Errors:                CloneErrors(r.Errors),
		ConfigLoadInterrupted: r.ConfigLoadInterrupted,
	}
}

// CloneErrors copies an error slice, preserving nil vs empty
func CloneErrors(errs []ConfigError) []ConfigError {
	if errs == nil {
		return nil
	}
	out := make([]ConfigError, len(errs))
	copy(out, errs)
	return out
}

// JoinErrors renders errors as a single line for logs
func JoinErrors(errs []ConfigError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
