package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/tools"
	"github.com/QuixiAI/Hexis/internal/tools/mcp"
	"github.com/QuixiAI/Hexis/internal/wiring"
)

// newMCPCommand launches every enabled MCP server from the current
// instance's tools.mcp_servers config and lists the tools each exposes. The
// long-running registration of these tools into a worker's registry happens
// in wiring.BuildRegistry; this is a standalone diagnostic launcher useful
// before wiring an agent's tool list at all.
func newMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Connect to configured MCP servers and list their tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			registry, err := wiring.DefaultRegistry()
			if err != nil {
				return err
			}
			inst, err := registry.ResolveCurrent()
			if err != nil {
				return err
			}
			pool, st, err := wiring.ConnectDSN(ctx, inst.DSN())
			if err != nil {
				return err
			}
			defer pool.Close()

			loader, err := config.NewLoader(st, getenv("HEXIS_CONFIG_FILE", ""))
			if err != nil {
				return err
			}
			var tc config.ToolsConfig
			if err := loader.Get(ctx, "tools", &tc); err != nil {
				return err
			}

			servers := make([]mcp.ServerConfig, 0, len(tc.MCPServers))
			for _, s := range tc.MCPServers {
				servers = append(servers, mcp.ServerConfig{
					Name: s.Name, Command: s.Command, Args: s.Args, Env: s.Env, Enabled: s.Enabled,
				})
			}

			mgr, errs := mcp.NewManager(ctx, servers)
			defer mgr.Close()

			out := cmd.OutOrStdout()
			for _, e := range errs {
				fmt.Fprintln(out, "connect error:", e)
			}
			regErrs := mgr.RegisterAll(ctx, func(h tools.Handler, log func(string, ...any)) error {
				fmt.Fprintf(out, "tool: %s (%s)\n", h.Spec().Name, h.Spec().Description)
				return nil
			}, func(format string, args ...any) {
				fmt.Fprintf(out, format+"\n", args...)
			})
			for _, e := range regErrs {
				fmt.Fprintln(out, "list error:", e)
			}
			return nil
		},
	}
}
