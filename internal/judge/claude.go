// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Claude judges images with an Anthropic vision model.
type Claude struct {
	client anthropic.Client
	model  string
	prompt string
}

// NewClaude returns a Claude judge. Extra request options (base URL, HTTP
// client) are passed to the SDK.
func NewClaude(apiKey, model string, opts ...option.RequestOption) (*Claude, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is empty")
	}
	prompt, err := renderPrompt()
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Claude{
		client: anthropic.NewClient(opts...),
		model:  strings.TrimSpace(model),
		prompt: prompt,
	}, nil
}

// Name implements Judge.
func (c *Claude) Name() string { return "Claude" }

// Judge implements Judge.
func (c *Claude) Judge(ctx context.Context, img Image) (Verdict, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)),
				anthropic.NewTextBlock(c.prompt),
			),
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("calling Claude API: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return parseVerdict(block.Text)
		}
	}
	return Verdict{}, fmt.Errorf("no text content in Claude response")
}
