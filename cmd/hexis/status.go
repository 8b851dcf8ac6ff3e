package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/wiring"
)

var (
	statusOKStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	statusWarnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	statusKeyStyle  = lipgloss.NewStyle().Faint(true)
)

func renderBool(label string, ok bool) string {
	v := statusOKStyle.Render("yes")
	if !ok {
		v = statusWarnStyle.Render("no")
	}
	return fmt.Sprintf("%s %s", statusKeyStyle.Render(label+":"), v)
}

// newStatusCommand reads the gate predicates of the current instance:
// is_agent_configured, is_agent_terminated, should_run_heartbeat,
// should_run_maintenance.
func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read the current instance's gate predicates",
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

			configured, err := st.IsAgentConfigured(ctx)
			if err != nil {
				return err
			}
			terminated, err := st.IsAgentTerminated(ctx)
			if err != nil {
				return err
			}
			hbState, err := st.HeartbeatState(ctx)
			if err != nil {
				return err
			}
			maintState, err := st.MaintenanceState(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "instance: %s\n", inst.Name)
			fmt.Fprintln(out, renderBool("is_agent_configured", configured))
			fmt.Fprintln(out, renderBool("is_agent_terminated", terminated))
			now := time.Now().UTC()
			fmt.Fprintln(out, renderBool("should_run_heartbeat", hbState.ShouldRunHeartbeat(configured, now)))
			fmt.Fprintln(out, renderBool("should_run_maintenance", maintState.ShouldRunMaintenance(now)))
			return nil
		},
	}
}
