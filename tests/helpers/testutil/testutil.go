// Package testutil provides mocks and fixtures shared by profile tests.
package testutil

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/GriffinCanCode/profiled/internal/controlplane"
	"github.com/GriffinCanCode/profiled/internal/ide"
	"github.com/GriffinCanCode/profiled/internal/materialize"
	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"github.com/stretchr/testify/mock"
)

// MockControlPlane is a mock implementation of controlplane.API for testing.
type MockControlPlane struct {
	mock.Mock
}

// ListAssistants mocks the ListAssistants method.
func (m *MockControlPlane) ListAssistants(ctx context.Context) ([]types.Assistant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Assistant), args.Error(1)
}

// ResolveSecrets mocks the ResolveSecrets method.
func (m *MockControlPlane) ResolveSecrets(ctx context.Context, fqsns []string) ([]controlplane.SecretResult, error) {
	args := m.Called(ctx, fqsns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]controlplane.SecretResult), args.Error(1)
}

// MockRenderer is a mock implementation of render.Renderer for testing.
type MockRenderer struct {
	mock.Mock
}

// Render mocks the Render method.
func (m *MockRenderer) Render(ctx context.Context, document string) (*types.ConfigDocument, error) {
	args := m.Called(ctx, document)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ConfigDocument), args.Error(1)
}

// MockMaterializer is a mock implementation of materialize.Materializer for testing.
type MockMaterializer struct {
	mock.Mock
}

// Materialize mocks the Materialize method.
func (m *MockMaterializer) Materialize(ctx context.Context, in materialize.Input) (types.ConfigResult[types.AppConfig], error) {
	args := m.Called(ctx, in)
	return args.Get(0).(types.ConfigResult[types.AppConfig]), args.Error(1)
}

// MockIDE is a mock implementation of ide.IDE for testing.
type MockIDE struct {
	mock.Mock
}

// Info mocks the Info method.
func (m *MockIDE) Info(ctx context.Context) (ide.Info, error) {
	args := m.Called(ctx)
	return args.Get(0).(ide.Info), args.Error(1)
}

// WorkspaceDirs mocks the WorkspaceDirs method.
func (m *MockIDE) WorkspaceDirs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// ReadSecrets mocks the ReadSecrets method.
func (m *MockIDE) ReadSecrets(ctx context.Context, keys []string) (map[string]string, error) {
	args := m.Called(ctx, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// MockLoader is a mock profile loader for testing.
type MockLoader struct {
	mock.Mock
}

// Description mocks the Description method.
func (m *MockLoader) Description() types.ProfileDescription {
	args := m.Called()
	return args.Get(0).(types.ProfileDescription)
}

// LoadConfig mocks the LoadConfig method.
func (m *MockLoader) LoadConfig(ctx context.Context) (types.ConfigResult[types.AppConfig], error) {
	args := m.Called(ctx)
	return args.Get(0).(types.ConfigResult[types.AppConfig]), args.Error(1)
}

// SetActive mocks the SetActive method.
func (m *MockLoader) SetActive(active bool) {
	m.Called(active)
}

// Close mocks the Close method.
func (m *MockLoader) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Refresh mocks the Refresh method.
func (m *MockLoader) Refresh(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// Cached mocks the Cached method.
func (m *MockLoader) Cached() types.ConfigResult[types.ConfigDocument] {
	args := m.Called()
	return args.Get(0).(types.ConfigResult[types.ConfigDocument])
}

// NewMockControlPlane creates a mock control plane with default behaviors.
func NewMockControlPlane(t *testing.T) *MockControlPlane {
	t.Helper()
	m := new(MockControlPlane)

	// Default behavior: nothing published, no secrets known
	m.On("ListAssistants", mock.Anything).Return([]types.Assistant{}, nil).Maybe()
	m.On("ResolveSecrets", mock.Anything, mock.Anything).Return([]controlplane.SecretResult{}, nil).Maybe()

	return m
}

// NewMockIDE creates a mock IDE with default behaviors.
func NewMockIDE(t *testing.T) *MockIDE {
	t.Helper()
	m := new(MockIDE)

	m.On("Info", mock.Anything).Return(ide.Info{Name: "mock", Version: "1.0"}, nil).Maybe()
	m.On("WorkspaceDirs", mock.Anything).Return([]string{"/workspace"}, nil).Maybe()
	m.On("ReadSecrets", mock.Anything, mock.Anything).Return(map[string]string{}, nil).Maybe()

	return m
}

// NewMockLoader creates a mock loader describing owner/pkg@version.
func NewMockLoader(t *testing.T, owner, pkg, version string) *MockLoader {
	t.Helper()
	m := new(MockLoader)

	m.On("Description").Return(types.NewPlatformDescription(owner, pkg, version, nil)).Maybe()
	m.On("SetActive", mock.Anything).Return().Maybe()
	m.On("Close").Return(nil).Maybe()

	return m
}

// CreateTestDocument creates a raw config document with one chat model.
func CreateTestDocument(t *testing.T, name string) *types.ConfigDocument {
	t.Helper()

	return &types.ConfigDocument{
		Name:    name,
		Version: "1.0.0",
		Models: []types.ModelBlock{
			{Name: "GPT-4o", Provider: "openai", Model: "gpt-4o", Roles: []string{"chat", "edit"}},
		},
	}
}

// CreateTestAssistant creates a directory entry for owner/pkg.
func CreateTestAssistant(t *testing.T, owner, pkg string, doc *types.ConfigDocument, errs ...types.ConfigError) types.Assistant {
	t.Helper()

	return types.Assistant{
		OwnerSlug:   owner,
		PackageSlug: pkg,
		ConfigResult: &types.ConfigResult[types.ConfigDocument]{
			Config: doc,
			Errors: errs,
		},
	}
}

// CreateTestAppConfig creates a materialized config named name.
func CreateTestAppConfig(t *testing.T, name string) *types.AppConfig {
	t.Helper()

	return &types.AppConfig{Name: name, Version: "1.0.0"}
}

// ReloadCounter counts reload callback invocations.
type ReloadCounter struct {
	n atomic.Int32
}

// OnReload is the callback to hand to a loader.
func (c *ReloadCounter) OnReload() {
	c.n.Add(1)
}

// Count returns the number of invocations so far.
func (c *ReloadCounter) Count() int {
	return int(c.n.Load())
}
