package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBinding(role, providerJSON string, client Client) *Binding {
	cfg := &fakeConfig{values: map[string]json.RawMessage{
		"llm." + role: json.RawMessage(providerJSON),
	}}
	return NewBinding(cfg, map[string]Client{"anthropic": client})
}

func TestNewThinkFuncFormatsPromptAndReturnsRawText(t *testing.T) {
	client := &fakeClient{resp: Response{Text: `{"reasoning":"rest","actions":[]}`}}
	binding := newTestBinding("heartbeat", `{"provider":"anthropic","model_id":"claude-3-7-sonnet"}`, client)
	think := NewThinkFunc(binding, "heartbeat")

	out, err := think(context.Background(), "heartbeat_decision", json.RawMessage(`{"energy":5}`), map[string]any{"kind": "heartbeat_decision"})
	require.NoError(t, err)
	require.JSONEq(t, `{"reasoning":"rest","actions":[]}`, string(out))
	require.Contains(t, client.captured.SystemPrompt, "heartbeat_decision")
	require.Contains(t, client.captured.UserPrompt, "energy")
}

func TestNewThinkFuncPropagatesClientError(t *testing.T) {
	client := &fakeClient{err: errNotFound("boom")}
	binding := newTestBinding("heartbeat", `{"provider":"anthropic","model_id":"claude-3-7-sonnet"}`, client)
	think := NewThinkFunc(binding, "heartbeat")

	_, err := think(context.Background(), "heartbeat_decision", json.RawMessage(`{}`), nil)
	require.Error(t, err)
}

func TestNewDeciderFuncParsesObservations(t *testing.T) {
	client := &fakeClient{resp: Response{Text: `{"narrative_observations":{"note":"ok"}}`}}
	binding := newTestBinding("subconscious", `{"provider":"anthropic","model_id":"claude-3-7-sonnet"}`, client)
	decide := NewDeciderFunc(binding)

	obs, err := decide(context.Background(), json.RawMessage(`{"memories":[]}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"note":"ok"}`, string(obs.NarrativeObservations))
}

func TestNewDeciderFuncErrorsOnMalformedJSON(t *testing.T) {
	client := &fakeClient{resp: Response{Text: `not json`}}
	binding := newTestBinding("subconscious", `{"provider":"anthropic","model_id":"claude-3-7-sonnet"}`, client)
	decide := NewDeciderFunc(binding)

	_, err := decide(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
}
