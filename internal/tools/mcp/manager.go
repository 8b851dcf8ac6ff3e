package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/QuixiAI/Hexis/internal/tools"
)

// ServerConfig is the minimal description of one configured MCP server,
// mirroring config.MCPServerConfig without importing the config package.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	Enabled bool
}

// Manager connects to each enabled MCP server, lists its tools, and
// registers one wrapper Handler per tool named "mcp_{server}_{tool}", per
// §4.C.
type Manager struct {
	clients map[string]*Client
}

// NewManager connects to every enabled server in configs. A server that
// fails to connect is skipped with its error recorded in the returned
// errs slice rather than aborting the whole start-up sequence, since one
// unreachable MCP server should not take down every other tool family.
func NewManager(ctx context.Context, configs []ServerConfig) (*Manager, []error) {
	m := &Manager{clients: make(map[string]*Client)}
	var errs []error
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		client, err := Connect(ctx, cfg.Command, cfg.Args, cfg.Env)
		if err != nil {
			errs = append(errs, fmt.Errorf("mcp server %q: %w", cfg.Name, err))
			continue
		}
		m.clients[cfg.Name] = client
	}
	return m, errs
}

// RegisterAll lists tools on every connected server and registers a wrapper
// Handler for each with Register.
func (m *Manager) RegisterAll(ctx context.Context, register func(tools.Handler, func(string, ...any)) error, log func(string, ...any)) []error {
	var errs []error
	for serverName, client := range m.clients {
		descriptors, err := client.ListTools(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("mcp server %q: list tools: %w", serverName, err))
			continue
		}
		for _, d := range descriptors {
			wrapper := wrapperHandler{
				server: serverName,
				tool:   d.Name,
				client: client,
				spec: tools.Spec{
					Name:             fmt.Sprintf("mcp_%s_%s", serverName, d.Name),
					Description:      d.Description,
					Parameters:       d.InputSchema,
					Category:         tools.CategoryMCP,
					EnergyCost:       2,
					IsReadOnly:       false,
					SupportsParallel: true,
					AllowedContexts:  tools.AllContexts(),
				},
			}
			if err := register(wrapper, log); err != nil {
				errs = append(errs, fmt.Errorf("mcp server %q tool %q: %w", serverName, d.Name, err))
			}
		}
	}
	return errs
}

// Close disconnects every connected server.
func (m *Manager) Close() {
	for _, c := range m.clients {
		_ = c.Close()
	}
}

// wrapperHandler adapts one MCP tool into a tools.Handler.
type wrapperHandler struct {
	server string
	tool   string
	client *Client
	spec   tools.Spec
}

func (w wrapperHandler) Spec() tools.Spec { return w.spec }

func (w wrapperHandler) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	raw, err := w.client.CallTool(ec.Go, w.tool, args)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	var output map[string]any
	if err := json.Unmarshal(raw, &output); err != nil {
		// Non-object results (a bare string or array) are still valid MCP
		// tool output; surface them under a single "result" key instead of
		// failing the call.
		var v any
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			output = map[string]any{"result": v}
		} else {
			output = map[string]any{"result": string(raw)}
		}
	}
	return tools.Result{Output: output}, nil
}
