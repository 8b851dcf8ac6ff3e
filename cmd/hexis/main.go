// Command hexis is the control-plane binary: a worker process that drives
// the heartbeat and maintenance loops against a configured Postgres
// substrate, plus the CLI surface described in §6.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "hexis",
		Short:         "Hexis control-plane binary",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newWorkerCommand())
	root.AddCommand(newComposeCommands()...)
	root.AddCommand(newInitCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newConfigCommand())
	root.AddCommand(newDemoCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newIngestCommand())
	root.AddCommand(newMCPCommand())
	root.AddCommand(newInstanceCommand())
	root.AddCommand(newConsentsCommand())
	root.AddCommand(newToolsCommand())

	cmd, err := root.ExecuteC()
	if err == nil {
		os.Exit(exitSuccess)
	}

	fmt.Fprintln(os.Stderr, err)
	if strings.HasPrefix(err.Error(), "unknown command") || strings.HasPrefix(err.Error(), "unknown flag") {
		os.Exit(exitUnknownUsage)
	}
	_ = cmd
	os.Exit(exitCodeFor(err))
}
