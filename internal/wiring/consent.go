package wiring

import (
	"context"
	"fmt"

	"github.com/QuixiAI/Hexis/internal/consent"
	"github.com/QuixiAI/Hexis/internal/llm"
)

// ErrConsentRequired is wrapped into the error AssembleWorker returns when a
// configured model lacks a valid consent certificate, per §4.G's "an
// instance's workers refuse to start until consent for its configured
// models is valid; refusal exits the loop cleanly".
type ErrConsentRequired struct {
	Provider string
	Model    string
}

func (e *ErrConsentRequired) Error() string {
	return fmt.Sprintf("consent: no valid consent certificate for %s/%s", e.Provider, e.Model)
}

// checkConsent verifies every role (heartbeat, chat, subconscious) the
// loader resolves to a configured model has a valid consent certificate,
// reading the consent directory from CONSENT_DIR or its default location.
func checkConsent(ctx context.Context, reader llm.ConfigReader) error {
	dir := getenv("CONSENT_DIR", "")
	if dir == "" {
		var err error
		dir, err = consent.DefaultDir()
		if err != nil {
			return fmt.Errorf("wiring: resolve consent directory: %w", err)
		}
	}
	store := consent.NewStore(dir)

	seen := map[string]bool{}
	for _, role := range []string{"heartbeat", "chat", "subconscious"} {
		var rc llm.RoleConfig
		if err := reader.Get(ctx, "llm."+role, &rc); err != nil {
			continue
		}
		if rc.Provider == "" || rc.Model == "" {
			continue
		}
		key := rc.Provider + "/" + rc.Model
		if seen[key] {
			continue
		}
		seen[key] = true

		ok, err := store.HasValidConsent(rc.Provider, rc.Model)
		if err != nil {
			return fmt.Errorf("wiring: check consent for %s: %w", key, err)
		}
		if !ok {
			return &ErrConsentRequired{Provider: rc.Provider, Model: rc.Model}
		}
	}
	return nil
}
