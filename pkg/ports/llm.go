package ports

import "context"

// GenerationRequest is the input of one streamed text generation.
type GenerationRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// TextStreamer produces generated text incrementally.
type TextStreamer interface {
	// Stream calls onDelta for every chunk in arrival order and returns when
	// the stream ends. Cancelling ctx must abort the underlying request.
	Stream(ctx context.Context, req GenerationRequest, onDelta func(string)) error
}

// TextStreamerFunc adapts a function to TextStreamer.
type TextStreamerFunc func(ctx context.Context, req GenerationRequest, onDelta func(string)) error

// Stream implements TextStreamer.
func (f TextStreamerFunc) Stream(ctx context.Context, req GenerationRequest, onDelta func(string)) error {
	return f(ctx, req, onDelta)
}
