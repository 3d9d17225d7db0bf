// Package materialize turns a rendered configuration document into the
// application configuration the IDE consumes.
package materialize

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/GriffinCanCode/profiled/internal/controlplane"
	"github.com/GriffinCanCode/profiled/internal/ide"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"go.uber.org/zap"
)

// LogWriter receives human readable diagnostics about a load
type LogWriter func(ctx context.Context, message string) error

// Input carries everything a materialization may consult
type Input struct {
	IDE       ide.IDE
	Settings  *ide.SettingsPromise
	Client    controlplane.API
	LogWriter LogWriter
	// OrgScopeID overrides the organization scope; nil means no override
	OrgScopeID *string
	Document   *types.ConfigDocument
	// Package is nil for configs that are not platform-sourced
	Package *types.PlatformConfigMetadata
}

// Materializer builds an AppConfig from a raw document
type Materializer interface {
	Materialize(ctx context.Context, in Input) (types.ConfigResult[types.AppConfig], error)
}

// DefaultRoles are assigned to models that declare none
var DefaultRoles = []types.ModelRole{types.RoleChat, types.RoleEdit, types.RoleApply}

// Option configures a Default materializer
type Option func(*Default)

// WithLogger sets the materializer logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Default) { m.logger = logging.OrNop(logger) }
}

// Default is the standard Materializer
type Default struct {
	now    func() time.Time
	logger *zap.Logger
}

// New creates the default materializer
func New(opts ...Option) *Default {
	m := &Default{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize implements Materializer. Problems with individual blocks are
// reported as non-fatal errors; only a missing document is fatal. A failed
// settings lookup is returned as an error.
func (m *Default) Materialize(ctx context.Context, in Input) (types.ConfigResult[types.AppConfig], error) {
	if in.Document == nil {
		return types.ConfigResult[types.AppConfig]{
			Errors: []types.ConfigError{{Fatal: true, Message: "no config document to load"}},
		}, nil
	}

	settings := ide.DefaultSettings()
	if in.Settings != nil {
		s, err := in.Settings.Await(ctx)
		if err != nil {
			return types.ConfigResult[types.AppConfig]{}, fmt.Errorf("await ide settings: %w", err)
		}
		settings = s
	}

	doc := in.Document
	cfg := &types.AppConfig{
		Name:                    doc.Name,
		Version:                 doc.Version,
		ModelsByRole:            make(map[types.ModelRole][]types.Model),
		SelectedModelByRole:     make(map[types.ModelRole]*types.Model),
		AllowAnonymousTelemetry: settings.EnableTelemetry,
		RemoteConfigServerURL:   settings.RemoteConfigServerURL,
		LoadedAt:                m.now(),
	}
	if in.OrgScopeID != nil {
		cfg.OrgScopeID = *in.OrgScopeID
	}
	if in.Package != nil {
		pkg := *in.Package
		cfg.Package = &pkg
	}

	var errs []types.ConfigError
	cfg.Models, errs = buildModels(doc.Models)
	for _, model := range cfg.Models {
		for _, role := range model.Roles {
			cfg.ModelsByRole[role] = append(cfg.ModelsByRole[role], model)
		}
	}
	for role, models := range cfg.ModelsByRole {
		selected := models[0]
		cfg.SelectedModelByRole[role] = &selected
	}

	cfg.ContextProviders = buildContext(doc.Context)
	cfg.Rules = buildRules(doc.Rules, ruleSource(in.Package))
	cfg.SlashCommands = buildCommands(doc.Prompts)
	cfg.MCPServers = buildMCPServers(doc.MCPServers)

	if in.LogWriter != nil {
		if err := in.LogWriter(ctx, summary(ctx, in.IDE, cfg, errs)); err != nil {
			m.logger.Debug("Failed to write load summary", zap.Error(err))
		}
	}

	return types.ConfigResult[types.AppConfig]{Config: cfg, Errors: errs}, nil
}

func buildModels(blocks []types.ModelBlock) ([]types.Model, []types.ConfigError) {
	models := make([]types.Model, 0, len(blocks))
	var errs []types.ConfigError

	for i, b := range blocks {
		if b.Provider == "" || b.Model == "" {
			errs = append(errs, types.ConfigError{
				Message: fmt.Sprintf("model %d (%q): provider and model are required", i, b.Name),
			})
			continue
		}

		roles, unknown := parseRoles(b.Roles)
		for _, r := range unknown {
			errs = append(errs, types.ConfigError{
				Message: fmt.Sprintf("model %q: unknown role %q", b.Name, r),
			})
		}

		title := b.Name
		if title == "" {
			title = b.Model
		}
		model := types.Model{
			Title:    title,
			Provider: b.Provider,
			Model:    b.Model,
			APIBase:  b.APIBase,
			APIKey:   b.APIKey,
			Roles:    roles,
		}
		if opts := b.CompletionOptions; opts != nil {
			model.ContextLength = opts.ContextLength
			model.MaxTokens = opts.MaxTokens
			model.Temperature = opts.Temperature
		}
		models = append(models, model)
	}
	return models, errs
}

func parseRoles(raw []string) (roles []types.ModelRole, unknown []string) {
	if len(raw) == 0 {
		return slices.Clone(DefaultRoles), nil
	}
	for _, r := range raw {
		role := types.ModelRole(r)
		if !slices.Contains(types.KnownRoles, role) {
			unknown = append(unknown, r)
			continue
		}
		if !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	return roles, unknown
}

func buildContext(blocks []types.ContextBlock) []types.ContextProvider {
	out := make([]types.ContextProvider, 0, len(blocks))
	for _, b := range blocks {
		name := b.Name
		if name == "" {
			name = b.Provider
		}
		out = append(out, types.ContextProvider{Name: name, Params: b.Params})
	}
	return out
}

func buildRules(blocks []types.RuleBlock, source string) []types.Rule {
	out := make([]types.Rule, 0, len(blocks))
	for _, b := range blocks {
		if b.Rule == "" {
			continue
		}
		out = append(out, types.Rule{Name: b.Name, Rule: b.Rule, Globs: b.Globs, Source: source})
	}
	return out
}

func buildCommands(blocks []types.PromptBlock) []types.SlashCommand {
	out := make([]types.SlashCommand, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, types.SlashCommand{Name: b.Name, Description: b.Description, Prompt: b.Prompt})
	}
	return out
}

func buildMCPServers(blocks []types.MCPServerBlock) []types.MCPServer {
	out := make([]types.MCPServer, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, types.MCPServer{Name: b.Name, Command: b.Command, Args: b.Args, Env: b.Env})
	}
	return out
}

func ruleSource(pkg *types.PlatformConfigMetadata) string {
	if pkg == nil {
		return "local"
	}
	return pkg.OwnerSlug + "/" + pkg.PackageSlug
}

func summary(ctx context.Context, handle ide.IDE, cfg *types.AppConfig, errs []types.ConfigError) string {
	target := "ide"
	if handle != nil {
		if info, err := handle.Info(ctx); err == nil && info.Name != "" {
			target = info.Name
		}
	}
	return fmt.Sprintf("Loaded config %q for %s: %d models, %d context providers, %d rules, %d commands, %d MCP servers, %d warnings",
		cfg.Name, target, len(cfg.Models), len(cfg.ContextProviders), len(cfg.Rules),
		len(cfg.SlashCommands), len(cfg.MCPServers), len(errs))
}
