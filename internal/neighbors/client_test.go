// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package neighbors

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/estrus-ensemble/internal/httputil"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestFind(t *testing.T) {
	var got matchRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "estrus-ensemble/test", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"neighbors": [
			{"id": "a", "label": "estrus", "similarity": 0.93, "image_path": "ref/a.jpg"},
			{"id": "b", "label": "Metestrus", "similarity": 0.91, "image_path": "ref/b.jpg"},
			{"id": "c", "label": "Estrus", "similarity": 0.90, "image_path": "ref/c.jpg"},
			{"id": "d", "label": "Diestrus", "similarity": 0.80, "image_path": "ref/d.jpg"}
		]}`))
	}))
	defer ts.Close()

	c, err := NewClient(types.NeighborsConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "estrus-ensemble/test"},
		URL:        ts.URL,
		APIKey:     "secret",
	})
	require.NoError(t, err)

	nbs, err := c.Find(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, defaultK, got.MatchCount)
	decoded, err := base64.StdEncoding.DecodeString(got.Image)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(decoded))

	require.Len(t, nbs, 3, "results are truncated to k")
	assert.Equal(t, types.Neighbor{ID: "a", Label: types.Estrus, Similarity: 0.93, ReferenceImagePath: "ref/a.jpg"}, nbs[0])
	assert.Equal(t, types.Metestrus, nbs[1].Label)
}

func TestFindEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"neighbors": []}`))
	}))
	defer ts.Close()

	c, err := NewClient(types.NeighborsConfig{URL: ts.URL, K: 5})
	require.NoError(t, err)
	nbs, err := c.Find(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, nbs)
}

func TestFindRetriesRateLimit(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"neighbors": [{"id": "a", "label": "Diestrus", "similarity": 0.7}]}`))
	}))
	defer ts.Close()

	c, err := NewClient(types.NeighborsConfig{URL: ts.URL, MaxRetries: 2})
	require.NoError(t, err)
	nbs, err := c.Find(context.Background(), []byte("x"))
	require.NoError(t, err)
	require.Len(t, nbs, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFindErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "boom", "returned 500"},
		{"service error field", http.StatusOK, `{"error": "no index loaded"}`, "no index loaded"},
		{"bad json", http.StatusOK, `not json`, "decoding match response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c, err := NewClient(types.NeighborsConfig{URL: ts.URL})
			require.NoError(t, err)
			_, err = c.Find(context.Background(), []byte("x"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(types.NeighborsConfig{})
	assert.Error(t, err)
}
