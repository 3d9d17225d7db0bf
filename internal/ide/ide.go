// Package ide describes the editor the daemon serves: its identity, its
// workspace, its locally stored secrets, and its persisted settings.
package ide

import (
	"context"
	"os"
	"sort"
	"strings"
)

// SecretEnvPrefix marks environment variables exposed as IDE secrets
const SecretEnvPrefix = "PROFILED_SECRET_"

// Info identifies the IDE
type Info struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	RemoteName string `json:"remoteName"`
}

// IDE is the editor handle consumed by renderers and materializers
type IDE interface {
	Info(ctx context.Context) (Info, error)
	WorkspaceDirs(ctx context.Context) ([]string, error)
	// ReadSecrets returns the values found for keys. Missing keys are absent
	// from the map.
	ReadSecrets(ctx context.Context, keys []string) (map[string]string, error)
}

// Static is an IDE whose answers are fixed at construction
type Static struct {
	info       Info
	workspaces []string
	secrets    map[string]string
}

// NewStatic creates a Static IDE. Secrets are taken from environ entries
// carrying SecretEnvPrefix, with the prefix stripped.
func NewStatic(info Info, workspaces []string, environ []string) *Static {
	secrets := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, SecretEnvPrefix) {
			continue
		}
		if name := strings.TrimPrefix(key, SecretEnvPrefix); name != "" {
			secrets[name] = value
		}
	}

	dirs := make([]string, len(workspaces))
	copy(dirs, workspaces)

	return &Static{info: info, workspaces: dirs, secrets: secrets}
}

// NewFromEnvironment creates a Static IDE from the process environment
func NewFromEnvironment(name, workspaceDir string) *Static {
	return NewStatic(Info{Name: name, Version: "1.0", RemoteName: "local"}, []string{workspaceDir}, os.Environ())
}

func (s *Static) Info(ctx context.Context) (Info, error) {
	return s.info, ctx.Err()
}

func (s *Static) WorkspaceDirs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]string, len(s.workspaces))
	copy(out, s.workspaces)
	return out, nil
}

func (s *Static) ReadSecrets(ctx context.Context, keys []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.secrets[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// SecretNames lists the secret names known to the IDE, sorted
func (s *Static) SecretNames() []string {
	names := make([]string, 0, len(s.secrets))
	for k := range s.secrets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
