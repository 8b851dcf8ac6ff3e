package openai_test

import (
	"context"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/llm/openai"
)

type mockChat struct {
	resp     *sdk.ChatCompletion
	err      error
	captured sdk.ChatCompletionNewParams
}

func (m *mockChat) New(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error) {
	m.captured = params
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestClientCompleteTranslatesTextAndUsage(t *testing.T) {
	mock := &mockChat{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{
				{
					Message:      sdk.ChatCompletionMessage{Content: "hello world"},
					FinishReason: "stop",
				},
			},
			Usage: sdk.CompletionUsage{PromptTokens: 30, CompletionTokens: 10, TotalTokens: 40},
		},
	}
	client, err := openai.New(mock, "gpt-4.1", 512, 0.3)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), llm.Request{
		SystemPrompt: "be terse",
		UserPrompt:   "hi there",
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Text)
	require.Equal(t, 40, resp.Usage.TotalTokens)
	require.Equal(t, "stop", resp.StopReason)

	require.Equal(t, "gpt-4.1", mock.captured.Model)
	require.Len(t, mock.captured.Messages, 2)
}

func TestClientCompleteOmitsSystemMessageWhenBlank(t *testing.T) {
	mock := &mockChat{resp: &sdk.ChatCompletion{}}
	client, err := openai.New(mock, "gpt-4.1", 512, 0)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{UserPrompt: "hi"})
	require.NoError(t, err)
	require.Len(t, mock.captured.Messages, 1)
}

func TestClientCompleteRequiresUserPrompt(t *testing.T) {
	client, err := openai.New(&mockChat{}, "gpt-4.1", 512, 0)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), llm.Request{})
	require.Error(t, err)
}
