package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/consent"
	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/wiring"
)

// newConsentsCommand groups list/show/request/revoke over
// internal/consent.Store, per §6.
func newConsentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consents",
		Short: "Manage per-model consent certificates",
	}
	cmd.AddCommand(newConsentsListCommand())
	cmd.AddCommand(newConsentsShowCommand())
	cmd.AddCommand(newConsentsRequestCommand())
	cmd.AddCommand(newConsentsRevokeCommand())
	return cmd
}

func openConsentStore() (*consent.Store, error) {
	dir := getenv("CONSENT_DIR", "")
	if dir == "" {
		var err error
		dir, err = consent.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	return consent.NewStore(dir), nil
}

func newConsentsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the latest consent certificate for every known model",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConsentStore()
			if err != nil {
				return err
			}
			certs, err := store.ListLatest()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range certs {
				status := "declined"
				if c.Valid() {
					status = "accepted"
				}
				if c.Revoked {
					status = "revoked"
				}
				fmt.Fprintf(out, "%s/%s\t%s\t%s\n", c.Model.Provider, c.Model.ModelID, status, c.Timestamp.Format("2006-01-02T15:04:05Z"))
			}
			return nil
		},
	}
}

func newConsentsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <provider> <model_id>",
		Short: "Print the latest consent certificate for one model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConsentStore()
			if err != nil {
				return err
			}
			cert, ok, err := store.Latest(args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "no certificate on file")
				return nil
			}
			fmt.Fprintf(out, "provider:   %s\n", cert.Model.Provider)
			fmt.Fprintf(out, "model:      %s\n", cert.Model.ModelID)
			fmt.Fprintf(out, "decision:   %s\n", cert.Decision)
			fmt.Fprintf(out, "revoked:    %v\n", cert.Revoked)
			fmt.Fprintf(out, "timestamp:  %s\n", cert.Timestamp.Format("2006-01-02T15:04:05Z"))
			if cert.RevocationReason != "" {
				fmt.Fprintf(out, "revocation: %s\n", cert.RevocationReason)
			}
			return nil
		},
	}
}

func newConsentsRequestCommand() *cobra.Command {
	var displayName, consentText string

	cmd := &cobra.Command{
		Use:   "request <provider> <model_id>",
		Short: "Request consent from a model and record the resulting certificate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			provider, modelID := args[0], args[1]

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

			store, err := openConsentStore()
			if err != nil {
				return err
			}

			if consentText == "" {
				consentText = defaultConsentText(provider, modelID)
			}

			cert, err := store.RequestConsent(ctx, consent.Model{Provider: provider, ModelID: modelID, DisplayName: displayName}, consentText, requesterFor(binding))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s decision for %s/%s\n", cert.Decision, provider, modelID)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "human-readable model name recorded on the certificate")
	cmd.Flags().StringVar(&consentText, "text", "", "consent text to present (a reasonable default is used if omitted)")
	return cmd
}

func newConsentsRevokeCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "revoke <provider> <model_id>",
		Short: "Revoke consent for a model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConsentStore()
			if err != nil {
				return err
			}
			if _, err := store.RevokeConsent(args[0], args[1], reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked consent for %s/%s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the revocation certificate")
	return cmd
}

func defaultConsentText(provider, modelID string) string {
	return fmt.Sprintf(
		"Hexis is requesting your consent to run as the %s/%s model. "+
			"Reply with a line starting ACCEPT or DECLINE, optionally followed by remarks.",
		provider, modelID,
	)
}

func requesterFor(binding *llm.Binding) consent.Requester {
	return func(ctx context.Context, model consent.Model, consentText string) (string, error) {
		resp, err := binding.Complete(ctx, "heartbeat", llm.Request{
			SystemPrompt: "Respond to the following consent request with a line starting ACCEPT or DECLINE.",
			UserPrompt:   consentText,
		})
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}
}
