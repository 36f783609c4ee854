// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini judges images with a Gemini vision model.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	prompt string
}

// NewGemini opens a Gemini client. Call Close when done.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	m := client.GenerativeModel(strings.TrimSpace(model))
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}

	prompt, err := renderPrompt()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	return &Gemini{client: client, model: m, prompt: prompt}, nil
}

// Name implements Judge.
func (g *Gemini) Name() string { return "Gemini" }

// Judge implements Judge.
func (g *Gemini) Judge(ctx context.Context, img Image) (Verdict, error) {
	resp, err := g.model.GenerateContent(ctx,
		genai.Text(g.prompt),
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
	)
	if err != nil {
		return Verdict{}, fmt.Errorf("calling Gemini API: %w", err)
	}
	text := firstText(resp)
	if text == "" {
		return Verdict{}, fmt.Errorf("no text content in Gemini response")
	}
	return parseVerdict(text)
}

// Close releases the client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
