// Package bedrock provides an llm.Client backed by the AWS Bedrock Converse
// API, translating a single-turn think request into one Converse call and
// concatenating the returned text content blocks.
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/QuixiAI/Hexis/internal/llm"
)

// RuntimeClient captures the subset of the AWS Bedrock runtime client used
// here, satisfied by *bedrockruntime.Client so tests can substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements llm.Client on top of the AWS Bedrock Converse API.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds a Bedrock-backed client from the given runtime client.
func New(runtime RuntimeClient, defaultModel string, maxTokens int, temperature float64) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{runtime: runtime, defaultModel: defaultModel, maxTokens: maxTokens, temperature: temperature}, nil
}

// Complete issues a non-streaming Converse request.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	if req.UserPrompt == "" {
		return llm.Response{}, errors.New("bedrock: user prompt is required")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: &modelID,
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: req.UserPrompt},
				},
			},
		},
	}
	if req.SystemPrompt != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temperature
	}
	if maxTokens > 0 || temp > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			mt := int32(maxTokens)
			cfg.MaxTokens = &mt
		}
		if temp > 0 {
			t := float32(temp)
			cfg.Temperature = &t
		}
		input.InferenceConfig = cfg
	}

	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isThrottling(err) {
			return llm.Response{}, llm.ErrRateLimited
		}
		return llm.Response{}, fmt.Errorf("bedrock converse: %w", err)
	}
	return translate(output)
}

// isThrottling unwraps a smithy API error and reports whether Bedrock
// rejected the request for throttling, so callers can fold it into
// llm.ErrRateLimited the same way the other providers do.
func isThrottling(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
		return true
	default:
		return false
	}
}

func translate(output *bedrockruntime.ConverseOutput) (llm.Response, error) {
	if output == nil {
		return llm.Response{}, errors.New("bedrock: response is nil")
	}
	var text string
	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
				text += tb.Value
			}
		}
	}
	resp := llm.Response{Text: text, StopReason: string(output.StopReason)}
	if usage := output.Usage; usage != nil {
		resp.Usage = llm.TokenUsage{
			InputTokens:  int(ptrValue(usage.InputTokens)),
			OutputTokens: int(ptrValue(usage.OutputTokens)),
			TotalTokens:  int(ptrValue(usage.TotalTokens)),
		}
	}
	return resp, nil
}

func ptrValue(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

var _ llm.Client = (*Client)(nil)
