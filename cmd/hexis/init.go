package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "hexis.yaml"

// newInitCommand writes a starter config overlay file, the local/dev layer
// internal/config.Loader merges beneath the DB-backed config map (§4.J).
func newInitCommand() *cobra.Command {
	var out string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config overlay file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = getenv("HEXIS_CONFIG_FILE", defaultConfigFile)
			}
			if !force {
				if _, err := os.Stat(out); err == nil {
					return fmt.Errorf("init: %s already exists (use --force to overwrite)", out)
				}
			}

			defaults := map[string]any{
				"agent.is_configured": false,
				"agent.objectives":    []string{},
				"llm.heartbeat": map[string]any{
					"provider": "anthropic",
					"model_id": "",
				},
				"llm.chat": map[string]any{
					"provider": "anthropic",
					"model_id": "",
				},
				"heartbeat.heartbeat_interval_minutes": 5,
				"tools": map[string]any{
					"enabled":             nil,
					"disabled":            []string{},
					"disabled_categories": []string{},
					"mcp_servers":         []any{},
					"api_keys":            map[string]string{},
					"costs":               map[string]int{},
					"context_overrides":   map[string]any{},
				},
			}

			data, err := yaml.Marshal(defaults)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "path to write (default HEXIS_CONFIG_FILE or ./hexis.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
