package bedrock_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/llm/bedrock"
)

type mockRuntime struct {
	output   *bedrockruntime.ConverseOutput
	err      error
	captured *bedrockruntime.ConverseInput
}

func (m *mockRuntime) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.captured = params
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func TestClientCompleteTranslatesTextAndUsage(t *testing.T) {
	mock := &mockRuntime{
		output: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: "hello"},
					&brtypes.ContentBlockMemberText{Value: " world"},
				},
			}},
			Usage: &brtypes.TokenUsage{
				InputTokens:  aws.Int32(100),
				OutputTokens: aws.Int32(20),
				TotalTokens:  aws.Int32(120),
			},
			StopReason: brtypes.StopReasonEndTurn,
		},
	}
	client, err := bedrock.New(mock, "anthropic.claude-3", 512, 0.5)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), llm.Request{
		SystemPrompt: "be terse",
		UserPrompt:   "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Text)
	require.Equal(t, 120, resp.Usage.TotalTokens)
	require.Equal(t, 100, resp.Usage.InputTokens)
	require.Equal(t, "end_turn", resp.StopReason)

	require.Equal(t, "anthropic.claude-3", *mock.captured.ModelId)
	require.Len(t, mock.captured.System, 1)
	require.NotNil(t, mock.captured.InferenceConfig.MaxTokens)
	require.Equal(t, int32(512), *mock.captured.InferenceConfig.MaxTokens)
}

func TestClientCompleteRequiresUserPrompt(t *testing.T) {
	client, err := bedrock.New(&mockRuntime{}, "anthropic.claude-3", 512, 0)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), llm.Request{})
	require.Error(t, err)
}

func TestClientCompletePropagatesRuntimeError(t *testing.T) {
	mock := &mockRuntime{err: errFake("boom")}
	client, err := bedrock.New(mock, "anthropic.claude-3", 512, 0)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), llm.Request{UserPrompt: "hi"})
	require.Error(t, err)
}

func TestClientCompleteTranslatesThrottlingToRateLimited(t *testing.T) {
	mock := &mockRuntime{err: &throttleErr{code: "ThrottlingException"}}
	client, err := bedrock.New(mock, "anthropic.claude-3", 512, 0)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), llm.Request{UserPrompt: "hi"})
	require.ErrorIs(t, err, llm.ErrRateLimited)
}

type errFake string

func (e errFake) Error() string { return string(e) }

type throttleErr struct{ code string }

func (e *throttleErr) Error() string                 { return "bedrock: " + e.code }
func (e *throttleErr) ErrorCode() string              { return e.code }
func (e *throttleErr) ErrorMessage() string           { return e.code }
func (e *throttleErr) ErrorFault() smithy.ErrorFault  { return smithy.FaultServer }
