package llm

import (
	"context"
	"fmt"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

const KindUnboundProvider = "llm.unbound_provider"

// RoleConfig is the JSON shape stored under the llm.heartbeat/llm.chat/
// llm.subconscious config keys: which provider+model a role resolves to.
type RoleConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model_id"`
}

// ConfigReader is the narrow slice of config.Loader the binding needs,
// declared locally so this package does not import internal/config.
type ConfigReader interface {
	Get(ctx context.Context, key string, out any) error
}

// Binding resolves a role (heartbeat, chat, subconscious) to a concrete
// Client and model identifier, reading the provider assignment from config
// and dispatching to a pre-built Client per provider name. It does not
// construct provider clients itself: cmd/hexis wires one Client per
// configured provider (anthropic, openai, bedrock) at startup, since each
// adapter needs its own credentials and HTTP transport.
type Binding struct {
	config    ConfigReader
	providers map[string]Client
}

// NewBinding builds a Binding over the given provider name -> Client map.
func NewBinding(config ConfigReader, providers map[string]Client) *Binding {
	return &Binding{config: config, providers: providers}
}

// Resolve reads the role's RoleConfig from config key "llm.<role>" and
// returns the matching Client plus the model identifier to request. The
// subconscious role falls back to the heartbeat role's assignment when
// "llm.subconscious" is unset, per the maintenance scheduler's cadence
// sharing the heartbeat's model budget absent a dedicated one.
func (b *Binding) Resolve(ctx context.Context, role string) (Client, string, error) {
	var rc RoleConfig
	err := b.config.Get(ctx, "llm."+role, &rc)
	if err != nil && role == "subconscious" {
		err = b.config.Get(ctx, "llm.heartbeat", &rc)
	}
	if err != nil {
		return nil, "", err
	}
	client, ok := b.providers[rc.Provider]
	if !ok {
		return nil, "", xerrors.Newf(KindUnboundProvider, "no llm client configured for provider %q (role %q)", rc.Provider, role)
	}
	return client, rc.Model, nil
}

// Complete resolves role and issues req against the bound Client, filling in
// req.Model from the role's configuration when the caller left it blank.
func (b *Binding) Complete(ctx context.Context, role string, req Request) (Response, error) {
	client, model, err := b.Resolve(ctx, role)
	if err != nil {
		return Response{}, fmt.Errorf("llm: resolve role %q: %w", role, err)
	}
	if req.Model == "" {
		req.Model = model
	}
	return client.Complete(ctx, req)
}
