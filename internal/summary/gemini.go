package summary

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrNoAPIKey is returned when the Gemini summarizer has no API key.
var ErrNoAPIKey = errors.New("gemini API key is not set")

const systemInstruction = "You summarise VAT reconciliation results for accountants. " +
	"Use only the figures provided and never invent invoice numbers."

// Gemini summarizes a reconciliation with Google's Gemini models.
type Gemini struct {
	apiKey string
	model  string

	// generate is replaced in tests.
	generate func(ctx context.Context, model, prompt string) (string, error)
}

var _ Summarizer = (*Gemini)(nil)

// NewGemini creates a Gemini summarizer. An empty model uses
// DefaultGeminiModel.
func NewGemini(apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	g := &Gemini{apiKey: apiKey, model: model}
	g.generate = g.callAPI
	return g, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// Summarize implements Summarizer.
func (g *Gemini) Summarize(ctx context.Context, req Request) (string, error) {
	text, err := g.generate(ctx, g.model, BuildPrompt(req))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *Gemini) callAPI(ctx context.Context, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	return result.Text(), nil
}
