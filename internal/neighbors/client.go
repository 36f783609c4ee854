// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package neighbors queries the reference-image match service for the most
// similar labeled images.
package neighbors

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/estrus-ensemble/internal/httputil"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

const (
	defaultK         = 3
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "estrus-ensemble/0.1"
)

// Finder returns the nearest reference images for an image.
type Finder interface {
	Find(ctx context.Context, image []byte) ([]types.Neighbor, error)
}

// Client calls the match service over HTTP.
type Client struct {
	url        string
	apiKey     string
	k          int
	userAgent  string
	maxRetries int
	http       *http.Client
}

// NewClient returns a client for cfg. An empty URL is an error.
func NewClient(cfg types.NeighborsConfig) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("neighbors URL is not configured")
	}
	k := cfg.K
	if k <= 0 {
		k = defaultK
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		k:          k,
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
		http:       &http.Client{Timeout: timeout},
	}, nil
}

type matchRequest struct {
	Image      string `json:"image"`
	MatchCount int    `json:"match_count"`
}

type matchResponse struct {
	Neighbors []types.Neighbor `json:"neighbors"`
	Error     string           `json:"error,omitempty"`
}

// Find posts the image and returns up to k neighbors, most similar first.
// An empty list is not an error; the caller falls back.
func (c *Client) Find(ctx context.Context, image []byte) ([]types.Neighbor, error) {
	body, err := json.Marshal(matchRequest{
		Image:      base64.StdEncoding.EncodeToString(image),
		MatchCount: c.k,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling match service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("match service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var mr matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decoding match response: %w", err)
	}
	if mr.Error != "" {
		return nil, fmt.Errorf("match service: %s", mr.Error)
	}

	out := mr.Neighbors
	if len(out) > c.k {
		out = out[:c.k]
	}
	for i := range out {
		if st, ok := types.ParseStage(string(out[i].Label)); ok {
			out[i].Label = st
		}
	}
	return out, nil
}
