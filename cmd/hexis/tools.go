package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/embed"
)

// newToolsCommand groups the tool-admin subcommands over config.ToolsConfig,
// per §6: list/enable/disable/set-api-key/set-cost/add-mcp/remove-mcp/status.
func newToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and edit the tool admission configuration",
	}
	cmd.AddCommand(newToolsListCommand())
	cmd.AddCommand(newToolsEnableCommand())
	cmd.AddCommand(newToolsDisableCommand())
	cmd.AddCommand(newToolsSetAPIKeyCommand())
	cmd.AddCommand(newToolsSetCostCommand())
	cmd.AddCommand(newToolsAddMCPCommand())
	cmd.AddCommand(newToolsRemoveMCPCommand())
	cmd.AddCommand(newToolsStatusCommand())
	return cmd
}

func withToolsConfig(cmd *cobra.Command, mutate func(tc *config.ToolsConfig) error) error {
	loader, closeFn, err := openConfigLoader(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	tc, err := config.LoadToolsConfig(ctx, loader)
	if err != nil {
		return err
	}
	if err := mutate(&tc); err != nil {
		return err
	}
	return loader.Set(ctx, "tools", tc)
}

func newToolsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the current tool admission configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeFn, err := openConfigLoader(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			tc, err := config.LoadToolsConfig(cmd.Context(), loader)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "enabled (allowlist):   %v\n", tc.Enabled)
			fmt.Fprintf(out, "disabled:              %v\n", tc.Disabled)
			fmt.Fprintf(out, "disabled categories:   %v\n", tc.DisabledCategories)
			fmt.Fprintf(out, "mcp servers:           %d configured\n", len(tc.MCPServers))
			for _, s := range tc.MCPServers {
				fmt.Fprintf(out, "  - %s (%s) enabled=%v\n", s.Name, s.Command, s.Enabled)
			}
			return nil
		},
	}
}

func newToolsEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <tool>",
		Short: "Remove a tool from the disabled list and add it to the allowlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := withToolsConfig(cmd, func(tc *config.ToolsConfig) error {
				tc.Disabled = removeString(tc.Disabled, name)
				if !containsString(tc.Enabled, name) {
					tc.Enabled = append(tc.Enabled, name)
				}
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enabled %s\n", name)
			return nil
		},
	}
}

func newToolsDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <tool>",
		Short: "Add a tool to the disabled list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := withToolsConfig(cmd, func(tc *config.ToolsConfig) error {
				tc.Enabled = removeString(tc.Enabled, name)
				if !containsString(tc.Disabled, name) {
					tc.Disabled = append(tc.Disabled, name)
				}
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "disabled %s\n", name)
			return nil
		},
	}
}

func newToolsSetAPIKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-api-key <tool> <value>",
		Short: "Set a tool's API key (use env:VAR to indirect through an environment variable)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, value := args[0], args[1]
			if err := withToolsConfig(cmd, func(tc *config.ToolsConfig) error {
				if tc.APIKeys == nil {
					tc.APIKeys = map[string]string{}
				}
				tc.APIKeys[name] = value
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set api key for %s\n", name)
			return nil
		},
	}
}

func newToolsSetCostCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-cost <tool> <energy>",
		Short: "Set a tool's energy cost override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cost, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("tools: %s is not an integer: %w", args[1], err)
			}
			if err := withToolsConfig(cmd, func(tc *config.ToolsConfig) error {
				if tc.Costs == nil {
					tc.Costs = map[string]int{}
				}
				tc.Costs[name] = cost
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set cost for %s to %d\n", name, cost)
			return nil
		},
	}
}

func newToolsAddMCPCommand() *cobra.Command {
	var mcpArgs []string
	var env map[string]string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add-mcp <name> <command>",
		Short: "Add a configured MCP server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, command := args[0], args[1]
			if err := withToolsConfig(cmd, func(tc *config.ToolsConfig) error {
				for i, s := range tc.MCPServers {
					if s.Name == name {
						tc.MCPServers[i] = config.MCPServerConfig{Name: name, Command: command, Args: mcpArgs, Env: env, Enabled: !disabled}
						return nil
					}
				}
				tc.MCPServers = append(tc.MCPServers, config.MCPServerConfig{Name: name, Command: command, Args: mcpArgs, Env: env, Enabled: !disabled})
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added mcp server %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&mcpArgs, "arg", nil, "command argument (repeatable)")
	cmd.Flags().StringToStringVar(&env, "env", nil, "environment variable to pass (key=value, repeatable)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "register the server but leave it disabled")
	return cmd
}

func newToolsRemoveMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-mcp <name>",
		Short: "Remove a configured MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := withToolsConfig(cmd, func(tc *config.ToolsConfig) error {
				kept := tc.MCPServers[:0]
				for _, s := range tc.MCPServers {
					if s.Name != name {
						kept = append(kept, s)
					}
				}
				tc.MCPServers = kept
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed mcp server %s\n", name)
			return nil
		},
	}
}

func newToolsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Diagnose the tool substrate: MCP server reachability and the embedding service",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeFn, err := openConfigLoader(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			tc, err := config.LoadToolsConfig(ctx, loader)
			if err != nil {
				return err
			}
			for _, s := range tc.MCPServers {
				fmt.Fprintf(out, "mcp server %s: enabled=%v\n", s.Name, s.Enabled)
			}

			var serviceURL string
			if err := loader.Get(ctx, "embedding.service_url", &serviceURL); err == nil && serviceURL != "" {
				client := embed.NewHTTPClient(serviceURL)
				if err := client.Ping(ctx); err != nil {
					fmt.Fprintf(out, "embedding service %s: unreachable (%v)\n", serviceURL, err)
				} else {
					fmt.Fprintf(out, "embedding service %s: reachable\n", serviceURL)
				}
			} else {
				fmt.Fprintln(out, "embedding service: not configured")
			}
			return nil
		},
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
