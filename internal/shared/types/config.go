package types

import "time"

// ModelRole is what a model is used for inside the IDE
type ModelRole string

const (
	RoleChat         ModelRole = "chat"
	RoleEdit         ModelRole = "edit"
	RoleApply        ModelRole = "apply"
	RoleAutocomplete ModelRole = "autocomplete"
	RoleEmbed        ModelRole = "embed"
	RoleRerank       ModelRole = "rerank"
	RoleSummarize    ModelRole = "summarize"
)

// KnownRoles lists every role a model block may declare
var KnownRoles = []ModelRole{RoleChat, RoleEdit, RoleApply, RoleAutocomplete, RoleEmbed, RoleRerank, RoleSummarize}

// Model is a resolved model ready for use
type Model struct {
	Title         string      `json:"title"`
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	APIBase       string      `json:"apiBase,omitempty"`
	APIKey        string      `json:"-"`
	Roles         []ModelRole `json:"roles"`
	ContextLength int         `json:"contextLength,omitempty"`
	MaxTokens     int         `json:"maxTokens,omitempty"`
	Temperature   *float64    `json:"temperature,omitempty"`
}

// ContextProvider is a resolved context provider
type ContextProvider struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// Rule is a resolved rule with its origin
type Rule struct {
	Name   string   `json:"name,omitempty"`
	Rule   string   `json:"rule"`
	Globs  []string `json:"globs,omitempty"`
	Source string   `json:"source"`
}

// SlashCommand is a prompt exposed as an IDE command
type SlashCommand struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt"`
}

// MCPServer is a resolved MCP server launch specification
type MCPServer struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// AppConfig is the fully resolved application configuration
type AppConfig struct {
	Name                    string                  `json:"name"`
	Version                 string                  `json:"version"`
	Models                  []Model                 `json:"models"`
	ModelsByRole            map[ModelRole][]Model   `json:"modelsByRole"`
	SelectedModelByRole     map[ModelRole]*Model    `json:"selectedModelByRole"`
	ContextProviders        []ContextProvider       `json:"contextProviders"`
	Rules                   []Rule                  `json:"rules"`
	SlashCommands           []SlashCommand          `json:"slashCommands"`
	MCPServers              []MCPServer             `json:"mcpServers"`
	AllowAnonymousTelemetry bool                    `json:"allowAnonymousTelemetry"`
	RemoteConfigServerURL   string                  `json:"remoteConfigServerUrl,omitempty"`
	OrgScopeID              string                  `json:"orgScopeId,omitempty"`
	Package                 *PlatformConfigMetadata `json:"package,omitempty"`
	LoadedAt                time.Time               `json:"loadedAt"`
}
