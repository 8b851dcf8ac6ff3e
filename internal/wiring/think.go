package wiring

import (
	"context"

	"github.com/QuixiAI/Hexis/internal/llm"
)

// NewSummarizeFunc adapts a Binding resolved to the "chat" role into
// web.SummarizeFunc's exact shape for the web_summarize tool. It calls the
// model through the binding directly and waits for the reply; it does not
// queue an external call with the broker. The summarizer reuses the chat role rather than a
// dedicated one, since summarization is a chat-adjacent capability, not a
// heartbeat think kind.
func NewSummarizeFunc(binding *llm.Binding) func(ctx context.Context, content, instructions string) (string, error) {
	return func(ctx context.Context, content, instructions string) (string, error) {
		prompt := "Summarize the following content"
		if instructions != "" {
			prompt += " per these instructions: " + instructions
		}
		prompt += ".\n\n" + content
		resp, err := binding.Complete(ctx, "chat", llm.Request{UserPrompt: prompt})
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}
}
