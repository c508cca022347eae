package services

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"docanalyzer/internal/config"
)

// ScoringEngine is the boundary to the text-generation service. Given a
// prompt it returns the model's raw output; which model and transport sit
// behind it is configuration. Implementations must be safe for concurrent
// use by multiple in-flight requests, and they carry no retry policy of
// their own.
type ScoringEngine interface {
	Score(ctx context.Context, prompt string) (string, error)
}

type geminiEngine struct {
	client          *genai.Client
	modelName       string
	temperature     float32
	maxOutputTokens int32
}

func NewGeminiEngine(cfg config.GeminiConfig) (ScoringEngine, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiEngine{
		client:          client,
		modelName:       cfg.Model,
		temperature:     float32(cfg.Temperature),
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}, nil
}

// Score implements ScoringEngine.
func (g *geminiEngine) Score(ctx context.Context, prompt string) (string, error) {
	generateConfig := &genai.GenerateContentConfig{
		Temperature:     &g.temperature,
		MaxOutputTokens: g.maxOutputTokens,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), generateConfig)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if resp == nil {
		return "", fmt.Errorf("no response generated (nil response)")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no text content in response")
	}

	return text, nil
}
