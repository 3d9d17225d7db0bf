package types

// ConfigDocument is a raw configuration document as published on the control
// plane or written in a local profile file, before materialization.
type ConfigDocument struct {
	Name       string           `yaml:"name" json:"name"`
	Version    string           `yaml:"version" json:"version"`
	Schema     string           `yaml:"schema,omitempty" json:"schema,omitempty"`
	Models     []ModelBlock     `yaml:"models,omitempty" json:"models,omitempty"`
	Context    []ContextBlock   `yaml:"context,omitempty" json:"context,omitempty"`
	Rules      []RuleBlock      `yaml:"rules,omitempty" json:"rules,omitempty"`
	Prompts    []PromptBlock    `yaml:"prompts,omitempty" json:"prompts,omitempty"`
	MCPServers []MCPServerBlock `yaml:"mcpServers,omitempty" json:"mcpServers,omitempty"`
}

// ModelBlock declares one model in a configuration document
type ModelBlock struct {
	Name              string             `yaml:"name" json:"name"`
	Provider          string             `yaml:"provider" json:"provider"`
	Model             string             `yaml:"model" json:"model"`
	APIKey            string             `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	APIBase           string             `yaml:"apiBase,omitempty" json:"apiBase,omitempty"`
	Roles             []string           `yaml:"roles,omitempty" json:"roles,omitempty"`
	CompletionOptions *CompletionOptions `yaml:"defaultCompletionOptions,omitempty" json:"defaultCompletionOptions,omitempty"`
}

// CompletionOptions tunes requests sent to a model
type CompletionOptions struct {
	ContextLength int      `yaml:"contextLength,omitempty" json:"contextLength,omitempty"`
	MaxTokens     int      `yaml:"maxTokens,omitempty" json:"maxTokens,omitempty"`
	Temperature   *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// ContextBlock declares a context provider
type ContextBlock struct {
	Provider string         `yaml:"provider" json:"provider"`
	Name     string         `yaml:"name,omitempty" json:"name,omitempty"`
	Params   map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// RuleBlock declares a rule injected into the system prompt
type RuleBlock struct {
	Name  string   `yaml:"name,omitempty" json:"name,omitempty"`
	Rule  string   `yaml:"rule" json:"rule"`
	Globs []string `yaml:"globs,omitempty" json:"globs,omitempty"`
}

// PromptBlock declares a reusable prompt
type PromptBlock struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Prompt      string `yaml:"prompt" json:"prompt"`
}

// MCPServerBlock declares an MCP server launched by the IDE
type MCPServerBlock struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}
