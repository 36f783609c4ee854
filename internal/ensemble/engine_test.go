// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ensemble

import (
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

func mustTable(t *testing.T, entries ...TableEntry) *Table {
	t.Helper()
	tbl, err := NewTable(entries)
	require.NoError(t, err)
	return tbl
}

func TestDecideCascade(t *testing.T) {
	overrides := mustTable(t,
		TableEntry{KNN: types.Estrus, Judge: types.Estrus, Stage: types.Proestrus, Support: 7},
		TableEntry{KNN: types.Metestrus, Judge: types.Diestrus, Stage: types.Metestrus, Support: 2},
	)

	tests := []struct {
		name       string
		knn, judge types.Stage
		conf       float64
		wantStage  types.Stage
		wantMethod string
	}{
		{"override beats agreement", types.Estrus, types.Estrus, 0.9, types.Proestrus, "Pair override (Estrus+Estrus)"},
		{"override below support is ignored", types.Metestrus, types.Diestrus, 0.9, types.Diestrus, "Gemini Diestrus override"},
		{"agreement", types.Diestrus, types.Diestrus, 0.1, types.Diestrus, "Agreement"},
		{"diestrus guard", types.Proestrus, types.Diestrus, 0.9, types.Diestrus, "Gemini Diestrus override"},
		{"diestrus guard at threshold", types.Estrus, types.Diestrus, 0.85, types.Diestrus, "Gemini Diestrus override"},
		{"diestrus below threshold keeps estrus", types.Estrus, types.Diestrus, 0.84, types.Estrus, "Fallback k-NN"},
		{"estrus guard", types.Estrus, types.Proestrus, 0.99, types.Estrus, "k-NN Estrus guard"},
		{"trusted proestrus", types.Proestrus, types.Metestrus, 0.9, types.Proestrus, "k-NN Proestrus"},
		{"trusted metestrus", types.Metestrus, types.Diestrus, 0.5, types.Metestrus, "k-NN Metestrus"},
		{"fallback diestrus", types.Diestrus, types.Estrus, 0.99, types.Diestrus, "Fallback k-NN"},
	}
	eng := NewEngine(types.DefaultEnsembleConfig(), overrides)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eng.Decide(tt.knn, tt.judge, tt.conf)
			assert.Equal(t, tt.wantStage, got.FinalStage)
			assert.Equal(t, tt.wantMethod, got.Method)
		})
	}
}

func TestDecideGuardWithEmptyTable(t *testing.T) {
	got := Decide(types.Proestrus, types.Diestrus, 0.9, EmptyTable())
	assert.Equal(t, types.Diestrus, got.FinalStage)
}

func TestDecideAgreementProperty(t *testing.T) {
	for _, st := range types.Stages {
		for _, conf := range []float64{0, 0.3, 0.85, 1} {
			got := Decide(st, st, conf, nil)
			assert.Equal(t, st, got.FinalStage)
			assert.Equal(t, MethodAgreement, got.Method)
		}
	}
}

func TestDecideOverridePriorityProperty(t *testing.T) {
	// Every pair with enough support resolves to its override, whatever the
	// other rules would say.
	for _, knn := range types.Stages {
		for _, judge := range types.Stages {
			tbl := mustTable(t, TableEntry{KNN: knn, Judge: judge, Stage: types.Metestrus, Support: 3})
			got := Decide(knn, judge, 0.99, tbl)
			assert.Equal(t, types.Metestrus, got.FinalStage)
			assert.Contains(t, got.Method, "Pair override")
		}
	}
}

func TestDecideTotalAndDeterministic(t *testing.T) {
	eng := NewEngine(types.DefaultEnsembleConfig(), nil)
	for _, knn := range types.Stages {
		for _, judge := range types.Stages {
			for _, conf := range []float64{-1, 0, 0.5, 0.85, 1, 2, math.NaN()} {
				first := eng.Decide(knn, judge, conf)
				assert.True(t, first.FinalStage.Valid())
				assert.NotEmpty(t, first.Method)
				assert.Equal(t, first, eng.Decide(knn, judge, conf))
			}
		}
	}
}

func TestDecideConfidenceClamped(t *testing.T) {
	got := Decide(types.Proestrus, types.Diestrus, 7.5, nil)
	assert.Equal(t, types.Diestrus, got.FinalStage)
	got = Decide(types.Proestrus, types.Diestrus, math.NaN(), nil)
	assert.Equal(t, types.Proestrus, got.FinalStage)
}

func TestDecideDegraded(t *testing.T) {
	eng := NewEngine(types.DefaultEnsembleConfig(), nil)

	got := eng.DecideKNNOnly(types.Estrus)
	assert.Equal(t, types.EnsembleDecision{FinalStage: types.Estrus, Method: MethodKNNOnly}, got)

	got = eng.Decide(types.Metestrus, types.Uncertain, 0.9)
	assert.Equal(t, MethodKNNOnly, got.Method)

	got = eng.Decide(types.Uncertain, types.Proestrus, 0.9)
	assert.Equal(t, types.Proestrus, got.FinalStage)
	assert.Equal(t, "Gemini only (k-NN unavailable)", got.Method)

	got = eng.Decide(types.Uncertain, types.Uncertain, 0.9)
	assert.Equal(t, types.Diestrus, got.FinalStage)
	assert.Equal(t, MethodNoEvidence, got.Method)
}

func TestEngineCustomConfig(t *testing.T) {
	cfg := types.EnsembleConfig{MinSupport: 5, DiestrusGuard: 0.95, JudgeName: "Claude"}
	tbl := mustTable(t, TableEntry{KNN: types.Estrus, Judge: types.Proestrus, Stage: types.Proestrus, Support: 4})
	eng := NewEngine(cfg, tbl)

	assert.Equal(t, MethodEstrusGuard, eng.Decide(types.Estrus, types.Proestrus, 0.5).Method)
	assert.Equal(t, "k-NN Proestrus", eng.Decide(types.Proestrus, types.Diestrus, 0.9).Method)
	assert.Equal(t, "Claude Diestrus override", eng.Decide(types.Proestrus, types.Diestrus, 0.96).Method)
}

func TestEngineConcurrentUse(t *testing.T) {
	eng := NewEngine(types.DefaultEnsembleConfig(), mustTable(t,
		TableEntry{KNN: types.Estrus, Judge: types.Proestrus, Stage: types.Estrus, Support: 3},
	))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d := eng.Decide(types.Estrus, types.Proestrus, 0.6)
				if d.FinalStage != types.Estrus {
					t.Errorf("FinalStage = %s, want Estrus", d.FinalStage)
				}
			}
		}()
	}
	wg.Wait()
}

func TestWeighted(t *testing.T) {
	eng := NewEngine(types.DefaultEnsembleConfig(), nil)

	// k-NN 0.6 Estrus vs judge 0.9 Proestrus:
	// Estrus = 0.4*0.6 + 0.6*0.0333 = 0.26, Proestrus = 0.4*0 + 0.6*0.9 = 0.54.
	knnScores := types.ScoreDistribution{types.Estrus: 0.6, types.Metestrus: 0.4}
	got := eng.Weighted(types.Estrus, knnScores, types.Proestrus, 0.9)
	assert.Equal(t, types.Proestrus, got.FinalStage)
	assert.Equal(t, MethodWeighted, got.Method)

	// A weak judge loses to a unanimous k-NN.
	got = eng.Weighted(types.Metestrus, types.ScoreDistribution{types.Metestrus: 1}, types.Diestrus, 0.4)
	assert.Equal(t, types.Metestrus, got.FinalStage)

	// Without scores the k-NN prediction is a full vote.
	got = eng.Weighted(types.Metestrus, nil, types.Diestrus, 0.4)
	assert.Equal(t, types.Metestrus, got.FinalStage)

	// Judge missing degrades like the cascade.
	got = eng.Weighted(types.Metestrus, nil, "", 0)
	assert.Equal(t, MethodKNNOnly, got.Method)
}

func TestTable(t *testing.T) {
	tbl := mustTable(t, TableEntry{KNN: types.Estrus, Judge: types.Proestrus, Stage: types.Estrus, Support: 3})

	e, ok := tbl.Lookup(types.Estrus, types.Proestrus)
	require.True(t, ok)
	assert.Equal(t, types.PairOverrideEntry{Stage: types.Estrus, Support: 3}, e)

	_, ok = tbl.Lookup(types.Proestrus, types.Estrus)
	assert.False(t, ok, "unseen pairs have no default")

	var nilTable *Table
	_, ok = nilTable.Lookup(types.Estrus, types.Estrus)
	assert.False(t, ok)
	assert.Equal(t, 0, nilTable.Len())
}

func TestNewTableRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry []TableEntry
		msg   string
	}{
		{"negative support", []TableEntry{{KNN: types.Estrus, Judge: types.Estrus, Stage: types.Estrus, Support: -1}}, "negative support"},
		{"uncertain stage", []TableEntry{{KNN: types.Uncertain, Judge: types.Estrus, Stage: types.Estrus, Support: 3}}, "invalid stage"},
		{"duplicate", []TableEntry{
			{KNN: types.Estrus, Judge: types.Estrus, Stage: types.Estrus, Support: 3},
			{KNN: types.Estrus, Judge: types.Estrus, Stage: types.Diestrus, Support: 4},
		}, "duplicate pair"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.entry)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestTableFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "overrides.yaml")
	tbl := mustTable(t,
		TableEntry{KNN: types.Diestrus, Judge: types.Estrus, Stage: types.Metestrus, Support: 4},
		TableEntry{KNN: types.Estrus, Judge: types.Proestrus, Stage: types.Estrus, Support: 3},
	)
	require.NoError(t, tbl.WriteFile(path))

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Entries(), loaded.Entries())
	assert.Equal(t, types.Estrus, loaded.Entries()[0].KNN, "entries sorted in cycle order")
}

func TestLoadTableMissingFile(t *testing.T) {
	tbl, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}
