// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"context"
	"fmt"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Default models per backend.
const (
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultClaudeModel = "claude-sonnet-4-20250514"
)

// New builds the configured judge wrapped with retries. The returned close
// function releases backend resources and is never nil.
func New(ctx context.Context, cfg types.JudgeConfig) (Judge, func() error, error) {
	noop := func() error { return nil }
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	switch cfg.Backend {
	case types.JudgeGemini, "":
		model := cfg.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		g, err := NewGemini(ctx, cfg.APIKey, model)
		if err != nil {
			return nil, noop, err
		}
		return WithRetry(g, maxRetries), g.Close, nil
	case types.JudgeClaude:
		model := cfg.Model
		if model == "" {
			model = DefaultClaudeModel
		}
		c, err := NewClaude(cfg.APIKey, model)
		if err != nil {
			return nil, noop, err
		}
		return WithRetry(c, maxRetries), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown judge backend %q", cfg.Backend)
	}
}
