package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiStreamer streams generations from the Gemini API.
type GeminiStreamer struct {
	client *genai.Client
	model  string
	config genai.GenerateContentConfig
}

var _ ports.TextStreamer = (*GeminiStreamer)(nil)

// GeminiOption configures a GeminiStreamer.
type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	model       string
	baseURL     string
	temperature *float32
}

// WithModel selects the model name.
func WithModel(model string) GeminiOption {
	return func(s *geminiSettings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL points the client at another endpoint, e.g. a proxy.
func WithBaseURL(url string) GeminiOption {
	return func(s *geminiSettings) {
		s.baseURL = url
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeminiOption {
	return func(s *geminiSettings) {
		s.temperature = &t
	}
}

// NewGeminiStreamer creates a streamer using the given API key.
func NewGeminiStreamer(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiStreamer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	settings := geminiSettings{model: DefaultGeminiModel}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if settings.baseURL != "" {
		cfg.HTTPOptions.BaseURL = settings.baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiStreamer{
		client: client,
		model:  settings.model,
		config: genai.GenerateContentConfig{Temperature: settings.temperature},
	}, nil
}

// Stream implements ports.TextStreamer.
func (g *GeminiStreamer) Stream(ctx context.Context, req ports.GenerationRequest, onDelta func(string)) error {
	config := g.config
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, &config) {
		if err != nil {
			return fmt.Errorf("gemini stream failed: %w", err)
		}
		if text := resp.Text(); text != "" {
			onDelta(text)
		}
	}
	return nil
}
