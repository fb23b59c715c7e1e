package llm

import (
	"context"
	"errors"

	"meal-plan-generator/internal/shared"
)

// ErrProviderTransport marks a failed round trip to a generative provider.
var ErrProviderTransport = errors.New("provider transport failure")

// Request is a single generation call.
type Request struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
}

// ProviderOutput is the raw payload returned by a provider: either Text or ContentBlocks.
type ProviderOutput interface {
	isProviderOutput()
}

// Text is a plain string payload.
type Text string

// Block is one part of a structured content response.
type Block struct {
	Type string
	Text string
}

// ContentBlocks is a structured payload made of ordered parts.
type ContentBlocks []Block

func (Text) isProviderOutput()          {}
func (ContentBlocks) isProviderOutput() {}

// ContentResponse contains the generated output and metadata like token usage.
type ContentResponse struct {
	Output ProviderOutput
	Usage  shared.TokenUsage
}

// TextGenerator is an interface for generating content from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, req Request) (ContentResponse, error)
	Provider() string
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
