package controlplane

import (
	"context"

	"github.com/GriffinCanCode/profiled/internal/shared/types"
)

// API is the subset of control plane operations the profile stack uses.
// *Client implements it; tests substitute mocks.
type API interface {
	ListAssistants(ctx context.Context) ([]types.Assistant, error)
	ResolveSecrets(ctx context.Context, fqsns []string) ([]SecretResult, error)
}

// SecretResult is the control plane's answer for one secret reference.
// Value is only meaningful when Found is true.
type SecretResult struct {
	FQSN  string `json:"fqsn"`
	Value string `json:"value,omitempty"`
	Found bool   `json:"found"`
}

type syncSecretsRequest struct {
	FQSNs []string `json:"fqsns"`
}
