package anthropic_test

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/llm/anthropic"
)

type mockMessages struct {
	resp     *sdk.Message
	err      error
	captured sdk.MessageNewParams
}

func (m *mockMessages) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	m.captured = body
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestClientCompleteTranslatesTextAndUsage(t *testing.T) {
	mock := &mockMessages{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "hello"},
				{Type: "text", Text: " world"},
			},
			Usage:      sdk.Usage{InputTokens: 42, OutputTokens: 8},
			StopReason: "end_turn",
		},
	}
	client, err := anthropic.New(mock, "claude-3-7-sonnet", 1024, 0.7)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), llm.Request{
		SystemPrompt: "be terse",
		UserPrompt:   "hi there",
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Text)
	require.Equal(t, 42, resp.Usage.InputTokens)
	require.Equal(t, 50, resp.Usage.TotalTokens)
	require.Equal(t, "end_turn", resp.StopReason)

	require.Equal(t, sdk.Model("claude-3-7-sonnet"), mock.captured.Model)
	require.Len(t, mock.captured.System, 1)
	require.Equal(t, int64(1024), mock.captured.MaxTokens)
}

func TestClientCompleteUsesRequestModelOverDefault(t *testing.T) {
	mock := &mockMessages{resp: &sdk.Message{}}
	client, err := anthropic.New(mock, "claude-3-7-sonnet", 1024, 0)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{UserPrompt: "hi", Model: "claude-3-5-haiku"})
	require.NoError(t, err)
	require.Equal(t, sdk.Model("claude-3-5-haiku"), mock.captured.Model)
}

func TestClientCompleteRequiresUserPrompt(t *testing.T) {
	client, err := anthropic.New(&mockMessages{}, "claude-3-7-sonnet", 1024, 0)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), llm.Request{})
	require.Error(t, err)
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := anthropic.New(&mockMessages{}, "", 1024, 0)
	require.Error(t, err)
}
