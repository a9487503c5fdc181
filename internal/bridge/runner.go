package bridge

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrEmptyOutput is returned when the model produced no text.
var ErrEmptyOutput = errors.New("empty response from model")

// RunRequest is one prompt sent to a model.
type RunRequest struct {
	Input        string
	Model        string
	SystemPrompt string
}

// Runner sends a prompt to a hosted model and returns its final text.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (string, error)
}

// GeminiRunner runs prompts on Gemini through the genai SDK. The client
// reads its credentials from the environment.
type GeminiRunner struct {
	client *genai.Client
}

// NewGeminiRunner creates a runner with a shared genai client.
func NewGeminiRunner(ctx context.Context) (*GeminiRunner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiRunner: create genai client: %w", err)
	}
	return &GeminiRunner{client: client}, nil
}

// Run implements Runner.
func (r *GeminiRunner) Run(ctx context.Context, req RunRequest) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.Input}},
		},
	}

	var cfg *genai.GenerateContentConfig
	if req.SystemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: req.SystemPrompt}},
			},
		}
	}

	resp, err := r.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("GeminiRunner.Run: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

var _ Runner = (*GeminiRunner)(nil)
