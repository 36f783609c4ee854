// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrain

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/estrus-ensemble/internal/ensemble"
	"github.com/pdiddy/estrus-ensemble/internal/optimize"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

type fakeSource struct {
	mu      sync.Mutex
	records []types.HistoricalRecord
	err     error
	calls   int
}

func (f *fakeSource) All(_ context.Context) ([]types.HistoricalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.records, f.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func history() []types.HistoricalRecord {
	var out []types.HistoricalRecord
	for i := 0; i < 3; i++ {
		out = append(out, types.HistoricalRecord{
			Filename:        "img_ESTRUS.jpg",
			FinalStage:      types.Proestrus.Ptr(),
			KNNPrediction:   types.Estrus.Ptr(),
			JudgePrediction: types.Proestrus.Ptr(),
		})
	}
	out = append(out, types.HistoricalRecord{
		Filename:   "img_DIESTRUS.jpg",
		FinalStage: types.Diestrus.Ptr(),
		Reasoning:  "k-NN predicted Diestrus. Gemini predicted Diestrus (91% confident). Final: Diestrus via Agreement.",
	})
	out = append(out, types.HistoricalRecord{Filename: "unlabeled.jpg", KNNPrediction: types.Estrus.Ptr()})
	return out
}

func TestRunWritesTable(t *testing.T) {
	out := filepath.Join(t.TempDir(), "config", "overrides.yaml")
	job := &Job{Source: &fakeSource{records: history()}, OutPath: out}

	var buf bytes.Buffer
	res, err := job.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 4, res.DatasetSize)
	assert.InDelta(t, 1.0, res.OracleAccuracy(), 1e-9)
	assert.Contains(t, buf.String(), "labeled with both predictions: 4")
	assert.Contains(t, buf.String(), "wrote 2 overrides")

	tbl, err := ensemble.LoadTable(out)
	require.NoError(t, err)
	e, ok := tbl.Lookup(types.Estrus, types.Proestrus)
	require.True(t, ok)
	assert.Equal(t, types.PairOverrideEntry{Stage: types.Estrus, Support: 3}, e)
}

func TestRunWithoutOutput(t *testing.T) {
	job := &Job{Source: &fakeSource{records: history()}, Options: optimize.Options{MinMargin: 5}}
	var buf bytes.Buffer
	res, err := job.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ambiguous 2")
	assert.NotContains(t, buf.String(), "wrote")
	assert.Len(t, res.Pairs, 2)
}

func TestRunSourceError(t *testing.T) {
	job := &Job{Source: &fakeSource{err: errors.New("db locked")}}
	_, err := job.Run(context.Background(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"@daily", false},
		{"@every 6h", false},
		{"0 3 * * 1-5", false},
		{"", true},
		{"every day", true},
		{"0 3 * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := ParseSchedule(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduleRunsUntilCancelled(t *testing.T) {
	src := &fakeSource{records: history()}
	job := &Job{Source: src}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := job.Schedule(ctx, "@every 1s", &buf)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, src.callCount(), 1)
	assert.Contains(t, buf.String(), "retrain scheduled (@every 1s)")
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	job := &Job{Source: &fakeSource{}}
	err := job.Schedule(context.Background(), "nonsense", &bytes.Buffer{})
	assert.Error(t, err)
}
