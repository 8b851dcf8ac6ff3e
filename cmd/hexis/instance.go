package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/instance"
	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/wiring"
)

// newInstanceCommand groups the instance-lifecycle subcommands over
// internal/instance.Registry/Lifecycle: create/list/use/current/delete/
// clone/import, per §6.
func newInstanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Manage named agent deployments",
	}
	cmd.AddCommand(newInstanceCreateCommand())
	cmd.AddCommand(newInstanceListCommand())
	cmd.AddCommand(newInstanceUseCommand())
	cmd.AddCommand(newInstanceCurrentCommand())
	cmd.AddCommand(newInstanceDeleteCommand())
	cmd.AddCommand(newInstanceCloneCommand())
	cmd.AddCommand(newInstanceImportCommand())
	return cmd
}

func instanceFlags(cmd *cobra.Command, host *string, port *int, user, passwordEnv, database, description *string) {
	cmd.Flags().StringVar(host, "host", "localhost", "substrate host")
	cmd.Flags().IntVar(port, "port", 5432, "substrate port")
	cmd.Flags().StringVar(user, "user", "hexis", "substrate user")
	cmd.Flags().StringVar(passwordEnv, "password-env", "HEXIS_DB_PASSWORD", "environment variable holding the substrate password")
	cmd.Flags().StringVar(database, "database", "", "substrate database name (defaults to the instance name)")
	cmd.Flags().StringVar(description, "description", "", "free-text description")
}

func newInstanceCreateCommand() *cobra.Command {
	var host, user, passwordEnv, database, description string
	var port int

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Allocate a fresh substrate and register it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if database == "" {
				database = name
			}
			registry, err := wiring.DefaultRegistry()
			if err != nil {
				return err
			}
			lc := wiring.DefaultLifecycle(registry)
			inst, err := lc.CreateInstance(cmd.Context(), name, instance.Instance{
				Database: database, Host: host, Port: port, User: user,
				PasswordEnv: passwordEnv, Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created instance %q (database %s)\n", name, inst.Database)
			return nil
		},
	}
	instanceFlags(cmd, &host, &port, &user, &passwordEnv, &database, &description)
	return cmd
}

func newInstanceImportCommand() *cobra.Command {
	var host, user, passwordEnv, database, description string
	var port int

	cmd := &cobra.Command{
		Use:   "import <name>",
		Short: "Register an existing, reachable substrate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if database == "" {
				database = name
			}
			registry, err := wiring.DefaultRegistry()
			if err != nil {
				return err
			}
			lc := wiring.DefaultLifecycle(registry)
			inst, err := lc.ImportInstance(cmd.Context(), name, instance.Instance{
				Database: database, Host: host, Port: port, User: user,
				PasswordEnv: passwordEnv, Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported instance %q (database %s)\n", name, inst.Database)
			return nil
		},
	}
	instanceFlags(cmd, &host, &port, &user, &passwordEnv, &database, &description)
	return cmd
}

func newInstanceCloneCommand() *cobra.Command {
	var host, user, passwordEnv, database, description string
	var port int

	cmd := &cobra.Command{
		Use:   "clone <src> <dst>",
		Short: "Clone an instance's substrate into a new one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			if database == "" {
				database = dst
			}
			registry, err := wiring.DefaultRegistry()
			if err != nil {
				return err
			}
			lc := wiring.DefaultLifecycle(registry)
			inst, err := lc.CloneInstance(cmd.Context(), src, dst, instance.Instance{
				Database: database, Host: host, Port: port, User: user,
				PasswordEnv: passwordEnv, Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cloned %q into %q (database %s)\n", src, dst, inst.Database)
			return nil
		},
	}
	instanceFlags(cmd, &host, &port, &user, &passwordEnv, &database, &description)
	return cmd
}

func newInstanceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := wiring.DefaultRegistry()
			if err != nil {
				return err
			}
			all, err := registry.ListAll()
			if err != nil {
				return err
			}
			current, _ := registry.GetCurrent()
			out := cmd.OutOrStdout()
			for _, inst := range all {
				marker := " "
				if inst.Name == current.Name {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s@%s:%d/%s\t%s\n", marker, inst.Name, inst.User, inst.Host, inst.Port, inst.Database, inst.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newInstanceUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Set the current instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := wiring.DefaultRegistry()
			if err != nil {
				return err
			}
			if err := registry.SetCurrent(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current instance set to %q\n", args[0])
			return nil
		},
	}
}

func newInstanceCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the resolved current instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := wiring.DefaultRegistry()
			if err != nil {
				return err
			}
			inst, err := registry.ResolveCurrent()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), inst.Name)
			return nil
		},
	}
}

func newInstanceDeleteCommand() *cobra.Command {
	var force bool
	var reason string
	var skipReview bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Run the termination review and retire an instance's substrate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := cmd.Context()

			registry, err := wiring.DefaultRegistry()
			if err != nil {
				return err
			}
			lc := wiring.DefaultLifecycle(registry)

			inst, err := registry.Get(name)
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
			providers, err := wiring.BuildProviders(getenv("LLM_MODEL", ""), getenvInt("LLM_MAX_TOKENS", 4096), getenvFloat("LLM_TEMPERATURE", 0.7))
			if err != nil {
				return err
			}
			binding := wiring.BuildBinding(loader, providers)
			think := llm.NewThinkFunc(binding, "heartbeat")

			err = lc.DeleteInstance(ctx, name, instance.DeleteInstanceParams{
				Force:             force,
				Reason:            reason,
				RequirePermission: !skipReview,
			}, think)

			var refused *instance.AgentDeletionRefused
			if errors.As(err, &refused) {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "termination refused:", refused.Review.Reasoning)
				for _, alt := range refused.Review.AlternativeActions {
					fmt.Fprintf(out, "  alternative: %s\n", alt.Action)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "drop the substrate even if termination was refused")
	cmd.Flags().StringVar(&reason, "reason", "", "reason presented to the termination review")
	cmd.Flags().BoolVar(&skipReview, "skip-review", false, "delete without running a termination review")
	return cmd
}
