package advisor

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

const instruction = `
You are a personal finance coach reviewing a small investment portfolio made of stocks and crypto assets.
You are given a markdown report of the portfolio and a few statistics about its recent value.
Answer in markdown with at most five short bullet points of practical savings and budget suggestions.
Stay factual about the figures you are given, never invent prices, and do not recommend specific securities.
`

// Gemini asks a Gemini model for advice.
type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGemini returns a Gemini using apiKey and model. An empty model uses
// DefaultModel.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
		},
	}, nil
}

// Ask sends prompt in a new chat and returns the text of the first answer.
func (g *Gemini) Ask(ctx context.Context, prompt string) (string, error) {
	chat, err := g.client.Chats.Create(ctx, g.model, g.config, nil)
	if err != nil {
		return "", err
	}
	resp, err := chat.Send(ctx, &genai.Part{Text: prompt})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from %s", g.model)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
