package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConfig struct {
	values map[string]json.RawMessage
}

func (f *fakeConfig) Get(ctx context.Context, key string, out any) error {
	v, ok := f.values[key]
	if !ok {
		return errNotFound(key)
	}
	return json.Unmarshal(v, out)
}

type errNotFound string

func (e errNotFound) Error() string { return "config key not found: " + string(e) }

func TestBindingResolvesConfiguredRole(t *testing.T) {
	cfg := &fakeConfig{values: map[string]json.RawMessage{
		"llm.heartbeat": json.RawMessage(`{"provider":"anthropic","model_id":"claude-3-7-sonnet"}`),
	}}
	client := &fakeClient{resp: Response{Text: "hi"}}
	binding := NewBinding(cfg, map[string]Client{"anthropic": client})

	resolved, model, err := binding.Resolve(context.Background(), "heartbeat")
	require.NoError(t, err)
	require.Same(t, client, resolved.(*fakeClient))
	require.Equal(t, "claude-3-7-sonnet", model)
}

func TestBindingSubconsciousFallsBackToHeartbeat(t *testing.T) {
	cfg := &fakeConfig{values: map[string]json.RawMessage{
		"llm.heartbeat": json.RawMessage(`{"provider":"anthropic","model_id":"claude-3-7-sonnet"}`),
	}}
	client := &fakeClient{resp: Response{Text: "hi"}}
	binding := NewBinding(cfg, map[string]Client{"anthropic": client})

	resolved, model, err := binding.Resolve(context.Background(), "subconscious")
	require.NoError(t, err)
	require.Same(t, client, resolved.(*fakeClient))
	require.Equal(t, "claude-3-7-sonnet", model)
}

func TestBindingErrorsOnUnknownProvider(t *testing.T) {
	cfg := &fakeConfig{values: map[string]json.RawMessage{
		"llm.heartbeat": json.RawMessage(`{"provider":"bedrock","model_id":"anthropic.claude-3"}`),
	}}
	binding := NewBinding(cfg, map[string]Client{"anthropic": &fakeClient{}})

	_, _, err := binding.Resolve(context.Background(), "heartbeat")
	require.Error(t, err)
}

func TestBindingCompleteFillsModelFromRole(t *testing.T) {
	cfg := &fakeConfig{values: map[string]json.RawMessage{
		"llm.chat": json.RawMessage(`{"provider":"openai","model_id":"gpt-4.1"}`),
	}}
	client := &fakeClient{resp: Response{Text: "hi"}}
	binding := NewBinding(cfg, map[string]Client{"openai": client})

	_, err := binding.Complete(context.Background(), "chat", Request{UserPrompt: "hello"})
	require.NoError(t, err)
	require.Equal(t, "gpt-4.1", client.captured.Model)
}
