package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/wiring"
)

// newChatCommand is a launcher over the chat role's Binding: a plain
// line-oriented loop that sends each stdin line as a user turn and prints
// the assistant's reply. The interactive chat REPL proper (history,
// streaming, slash-commands) is an external collaborator per §1; this is
// the thin control-plane end of that wire.
func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a line-oriented chat session against the current instance",
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
			providers, err := wiring.BuildProviders(getenv("LLM_MODEL", ""), getenvInt("LLM_MAX_TOKENS", 4096), getenvFloat("LLM_TEMPERATURE", 0.7))
			if err != nil {
				return err
			}
			binding := wiring.BuildBinding(loader, providers)

			out := cmd.OutOrStdout()
			in := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprintln(out, "hexis chat (ctrl-d to exit)")
			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					return nil
				}
				line := in.Text()
				if line == "" {
					continue
				}
				resp, err := binding.Complete(ctx, "chat", llm.Request{
					SystemPrompt: "You are Hexis, a persistent cognitive agent speaking directly with its operator.",
					UserPrompt:   line,
				})
				if err != nil {
					fmt.Fprintln(out, "error:", err)
					continue
				}
				fmt.Fprintln(out, resp.Text)
			}
		},
	}
}
