// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package judge asks a vision model for an independent stage call on one
// image. Backends return a Verdict; the ensemble only reads its stage and
// confidence, the remaining fields are kept for display.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Image is the input sent to the judge.
type Image struct {
	Data     []byte
	MIMEType string
}

// Verdict is one judge call.
type Verdict struct {
	Stage      types.Stage       `json:"stage" yaml:"stage"`
	Confidence float64           `json:"confidence" yaml:"confidence"`
	Features   map[string]string `json:"features,omitempty" yaml:"features,omitempty"`
	Rationale  string            `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// Prediction returns the verdict as a classifier prediction.
func (v Verdict) Prediction() types.ClassifierPrediction {
	return types.ClassifierPrediction{Stage: v.Stage, Confidence: v.Confidence}
}

// Judge abstracts the vision model so tests can supply a mock.
type Judge interface {
	// Name labels the judge in method tags and reasoning ("Gemini").
	Name() string
	Judge(ctx context.Context, img Image) (Verdict, error)
}

// ErrUncertain is returned when the model explicitly declines to stage.
var ErrUncertain = errors.New("judge returned Uncertain")

// rawVerdict is the JSON shape requested from the model.
type rawVerdict struct {
	Stage      string            `json:"stage"`
	Confidence types.Confidence  `json:"confidence"`
	Features   map[string]string `json:"features"`
	Rationale  string            `json:"rationale"`
}

// parseVerdict decodes a model reply. Code fences are stripped and the
// confidence may be a number, a percentage string or {"score": n}.
func parseVerdict(text string) (Verdict, error) {
	text = stripCodeFences(strings.TrimSpace(text))
	if text == "" {
		return Verdict{}, fmt.Errorf("empty judge response")
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Verdict{}, fmt.Errorf("parsing judge JSON: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(raw.Stage), string(types.Uncertain)) {
		return Verdict{Stage: types.Uncertain, Rationale: raw.Rationale}, ErrUncertain
	}
	stage, ok := types.ParseStage(raw.Stage)
	if !ok {
		return Verdict{}, fmt.Errorf("judge returned unknown stage %q", raw.Stage)
	}
	if !raw.Confidence.Present() {
		return Verdict{}, fmt.Errorf("judge response has no confidence")
	}

	return Verdict{
		Stage:      stage,
		Confidence: raw.Confidence.Value(),
		Features:   raw.Features,
		Rationale:  raw.Rationale,
	}, nil
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// backoffBase controls the base duration for exponential backoff. Tests
// override it to avoid real delays.
var backoffBase = time.Second

// callWithRetry calls the judge with exponential backoff. An Uncertain
// verdict is final and not retried.
func callWithRetry(ctx context.Context, j Judge, img Image, maxRetries int) (Verdict, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return Verdict{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		v, err := j.Judge(ctx, img)
		if err == nil || errors.Is(err, ErrUncertain) {
			return v, err
		}
		lastErr = err
	}
	return Verdict{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// retrying wraps a Judge with callWithRetry.
type retrying struct {
	inner      Judge
	maxRetries int
}

func (r retrying) Name() string { return r.inner.Name() }

func (r retrying) Judge(ctx context.Context, img Image) (Verdict, error) {
	return callWithRetry(ctx, r.inner, img, r.maxRetries)
}

// WithRetry returns j retried up to maxRetries times.
func WithRetry(j Judge, maxRetries int) Judge {
	if maxRetries <= 0 {
		return j
	}
	return retrying{inner: j, maxRetries: maxRetries}
}
