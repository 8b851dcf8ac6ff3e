package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/telemetry"
	"github.com/QuixiAI/Hexis/internal/wiring"
)

// newDemoCommand assembles one worker process against the database named by
// the POSTGRES_* environment variables and drives a
// single heartbeat to completion, printing its outcome. It exercises the
// same wiring.AssembleWorker path as `hexis worker`, just for one turn
// instead of the long-running loop.
func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a single heartbeat against the current instance and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := telemetry.NewZerologLogger(zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger())

			proc, err := wiring.AssembleWorker(ctx, log)
			if err != nil {
				return err
			}
			defer proc.Close()

			outcome, err := proc.Runner.Heartbeat.RunOnce(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outcome.Skipped {
				fmt.Fprintln(out, "no heartbeat was due")
				return nil
			}
			fmt.Fprintf(out, "heartbeat %s: completed=%v terminated=%v memory_id=%s\n",
				outcome.HeartbeatID, outcome.Completed, outcome.Terminated, outcome.MemoryID)
			return nil
		},
	}
}
