package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/wiring"
)

// newIngestCommand is a launcher that reads lines from stdin (or a file)
// and queues each as an inbound user message, exercising the same path the
// maintenance scheduler drains via FetchInbound. The universal document
// ingestion pipeline (PDF/audio readers, chunking, embedding) is an external
// collaborator per §1; this command is the thin control-plane end of that
// wire for plain text.
func newIngestCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Queue lines of text as inbound messages for the current instance",
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

			var scanner *bufio.Scanner
			if file != "" {
				f, err := openReadOnly(file)
				if err != nil {
					return err
				}
				defer f.Close()
				scanner = bufio.NewScanner(f)
			} else {
				scanner = bufio.NewScanner(cmd.InOrStdin())
			}

			count := 0
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				if err := st.EnqueueInboundMessage(ctx, line, nil); err != nil {
					return err
				}
				count++
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d message(s)\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to read instead of stdin")
	return cmd
}
