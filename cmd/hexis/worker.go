package main

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/telemetry"
	"github.com/QuixiAI/Hexis/internal/wiring"
)

// newWorkerCommand builds the `hexis worker` subcommand: it assembles the
// heartbeat and maintenance loops from environment configuration and runs
// them until an interrupt or termination signal arrives, per §4.F's
// "shutdown is wired to os/signal.NotifyContext".
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the heartbeat and maintenance loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := telemetry.NewZerologLogger(zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			proc, err := wiring.AssembleWorker(ctx, log)
			if err != nil {
				return err
			}
			defer proc.Close()

			log.Info(ctx, "hexis worker starting")
			proc.Runner.Run(ctx)
			log.Info(ctx, "hexis worker stopped")
			return nil
		},
	}
}
