package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/wiring"
)

// newConfigCommand groups the show/validate/set subcommands over the
// merged config.Loader (DB map + YAML overlay).
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the current instance's configuration",
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigSetCommand())
	return cmd
}

func openConfigLoader(cmd *cobra.Command) (*config.Loader, func(), error) {
	ctx := cmd.Context()
	registry, err := wiring.DefaultRegistry()
	if err != nil {
		return nil, nil, err
	}
	inst, err := registry.ResolveCurrent()
	if err != nil {
		return nil, nil, err
	}
	pool, st, err := wiring.ConnectDSN(ctx, inst.DSN())
	if err != nil {
		return nil, nil, err
	}
	overlay := getenv("HEXIS_CONFIG_FILE", "")
	loader, err := config.NewLoader(st, overlay)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return loader, pool.Close, nil
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeFn, err := openConfigLoader(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			all, err := loader.All(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			for _, k := range keys {
				var buf bytes.Buffer
				if err := json.Indent(&buf, all[k], "", "  "); err != nil {
					buf.Reset()
					buf.Write(all[k])
				}
				fmt.Fprintf(out, "%s: %s\n", k, buf.String())
			}
			return nil
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate required configuration keys are present",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeFn, err := openConfigLoader(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			required := []string{"llm.heartbeat", "llm.chat", "heartbeat.heartbeat_interval_minutes"}
			var problems []string
			for _, key := range required {
				var raw json.RawMessage
				if err := loader.Get(ctx, key, &raw); err != nil {
					problems = append(problems, fmt.Sprintf("%s: %v", key, err))
				}
			}
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintln(out, "configuration valid")
				return nil
			}
			for _, p := range problems {
				fmt.Fprintln(out, "missing: "+p)
			}
			return fmt.Errorf("config: %d required key(s) missing", len(problems))
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <json-value>",
		Short: "Set a configuration key to a raw JSON value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeFn, err := openConfigLoader(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("config: %s is not valid JSON: %w", args[1], err)
			}
			if err := loader.Set(cmd.Context(), args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set %s\n", args[0])
			return nil
		},
	}
}
