package config

import "context"

// ToolsConfig mirrors §3 of the spec: the structure stored under the single
// config key "tools". ContextOverrides keys by context name (heartbeat, chat,
// mcp).
type ToolsConfig struct {
	Enabled            []string                       `json:"enabled" yaml:"enabled"`
	Disabled           []string                       `json:"disabled" yaml:"disabled"`
	DisabledCategories []string                       `json:"disabled_categories" yaml:"disabled_categories"`
	MCPServers         []MCPServerConfig               `json:"mcp_servers" yaml:"mcp_servers"`
	APIKeys            map[string]string               `json:"api_keys" yaml:"api_keys"`
	Costs              map[string]int                  `json:"costs" yaml:"costs"`
	ContextOverrides   map[string]ContextOverride      `json:"context_overrides" yaml:"context_overrides"`
	WorkspacePath      string                          `json:"workspace_path" yaml:"workspace_path"`
	Approvals          []string                        `json:"approvals" yaml:"approvals"`
	CacheBackend       string                          `json:"cache_backend" yaml:"cache_backend"`
	RateLimitBackend   string                          `json:"rate_limit_backend" yaml:"rate_limit_backend"`
}

// MCPServerConfig describes one configured MCP server connection.
type MCPServerConfig struct {
	Name    string            `json:"name" yaml:"name"`
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args" yaml:"args"`
	Env     map[string]string `json:"env" yaml:"env"`
	Enabled bool              `json:"enabled" yaml:"enabled"`
}

// ContextOverride narrows or widens tool admission for a specific execution
// context (heartbeat/chat/mcp).
type ContextOverride struct {
	MaxEnergyPerTool int      `json:"max_energy_per_tool,omitempty" yaml:"max_energy_per_tool,omitempty"`
	Disabled         []string `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Enabled          []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	AllowAll         bool     `json:"allow_all,omitempty" yaml:"allow_all,omitempty"`
	AllowShell       bool     `json:"allow_shell,omitempty" yaml:"allow_shell,omitempty"`
	AllowFileWrite   bool     `json:"allow_file_write,omitempty" yaml:"allow_file_write,omitempty"`
}

// APIKey resolves an api_keys entry, following the "env:VAR" indirection
// convention from §3.
func (t ToolsConfig) APIKey(name string) string {
	v, ok := t.APIKeys[name]
	if !ok {
		return ""
	}
	return resolveEnvIndirection(v)
}

// LoadToolsConfig loads and unmarshals the "tools" config key via a Loader.
// A missing key yields the zero ToolsConfig and no error.
func LoadToolsConfig(ctx context.Context, l *Loader) (ToolsConfig, error) {
	var tc ToolsConfig
	if err := l.Get(ctx, "tools", &tc); err != nil {
		if KindOfMissing(err) {
			return ToolsConfig{}, nil
		}
		return ToolsConfig{}, err
	}
	return tc, nil
}

// KindOfMissing reports whether err is a "config key not set" error, letting
// callers treat an absent "tools" key as "use defaults" rather than a fatal
// configuration error.
func KindOfMissing(err error) bool {
	return err != nil && isMissingKeyErr(err)
}
