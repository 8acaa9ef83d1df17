package domain

import "context"

// LLMClient defines the capability to send prompts to a generation
// model and receive textual responses. Failures carry a
// *GenerationError so callers can classify them.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the model output and whether generation finished
// normally.
type LLMResponse struct {
	Text string
	Done bool
}
