package gate

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is the model used for all gate stages. The stages are short
// single-exchange classifications, so the small model is sufficient.
const DefaultModel = string(anthropic.ModelClaude3_5HaikuLatest)

// AnthropicClassifier implements Classifier against the Anthropic Messages
// API. It performs no retries: the gate's contract is one request/response
// per stage, with transport errors handled by the orchestrator's per-item
// failure isolation.
type AnthropicClassifier struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClassifier creates a classifier with the given API key. An
// empty model selects DefaultModel.
func NewAnthropicClassifier(apiKey, model string) (*AnthropicClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicClassifier{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}, nil
}

// Classify sends one message and returns the text of the first content
// block.
func (a *AnthropicClassifier) Classify(ctx context.Context, system, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("classification request: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("unexpected response format: no content blocks")
	}
	content := message.Content[0]
	if content.Type != "text" {
		return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
	}
	return content.Text, nil
}
