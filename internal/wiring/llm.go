package wiring

import (
	"context"
	"fmt"
	"os"

	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/llm/anthropic"
	"github.com/QuixiAI/Hexis/internal/llm/bedrock"
	"github.com/QuixiAI/Hexis/internal/llm/openai"
	"github.com/QuixiAI/Hexis/internal/ratelimit"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BuildProviders constructs one llm.Client per configured provider, keyed by
// provider name (anthropic, openai, bedrock), reading credentials from the
// *_API_KEY environment variables named in spec.md §6. A provider whose
// required credential is absent is simply omitted from the map rather than
// causing BuildProviders to fail, since a deployment may only use one of
// the three.
func BuildProviders(defaultModel string, maxTokens int, temperature float64) (map[string]llm.Client, error) {
	providers := make(map[string]llm.Client)

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		client, err := anthropic.NewFromAPIKey(apiKey, defaultModel, maxTokens, temperature)
		if err != nil {
			return nil, fmt.Errorf("wiring: anthropic client: %w", err)
		}
		providers["anthropic"] = client
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		baseURL := os.Getenv("OPENAI_BASE_URL")
		client, err := openai.NewFromAPIKey(apiKey, baseURL, defaultModel, maxTokens, temperature)
		if err != nil {
			return nil, fmt.Errorf("wiring: openai client: %w", err)
		}
		providers["openai"] = client
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		client, err := buildBedrockClient(region, defaultModel, maxTokens, temperature)
		if err != nil {
			return nil, fmt.Errorf("wiring: bedrock client: %w", err)
		}
		providers["bedrock"] = client
	}

	return providers, nil
}

func buildBedrockClient(region, defaultModel string, maxTokens int, temperature float64) (llm.Client, error) {
	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	runtime := bedrockruntime.NewFromConfig(cfg)
	return bedrock.New(runtime, defaultModel, maxTokens, temperature)
}

// WrapWithRateLimit applies the component M limiter to every provider
// client, keyed per-model inside llm.RateLimited, per §4.K's "ratelimit.Wrap
// decorator applies the component M limiter before any adapter call".
func WrapWithRateLimit(providers map[string]llm.Client, limiter ratelimit.Limiter) map[string]llm.Client {
	wrapped := make(map[string]llm.Client, len(providers))
	for name, client := range providers {
		wrapped[name] = llm.Wrap(client, limiter)
	}
	return wrapped
}

// BuildBinding assembles an llm.Binding over the provider map and a config
// reader, resolving the heartbeat/chat/subconscious roles at call time.
func BuildBinding(reader llm.ConfigReader, providers map[string]llm.Client) *llm.Binding {
	return llm.NewBinding(reader, providers)
}
