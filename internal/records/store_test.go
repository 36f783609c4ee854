// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/estrus-ensemble/internal/ensemble"
	"github.com/pdiddy/estrus-ensemble/internal/evaluate"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(types.StoreConfig{DataDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestNewStoreCreatesDatabase(t *testing.T) {
	_, dir := testStore(t)
	_, err := os.Stat(filepath.Join(dir, indexDir, dbFile))
	assert.NoError(t, err)
}

func TestNewStoreRejectsBadConfig(t *testing.T) {
	_, err := NewStore(types.StoreConfig{Driver: types.DriverPostgres})
	assert.ErrorContains(t, err, "requires a DSN")

	_, err = NewStore(types.StoreConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestInsertListRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	conf := 0.72
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := types.HistoricalRecord{
		ID:              "c1",
		Filename:        "mouse3_EST_day2.jpg",
		FinalStage:      types.Estrus.Ptr(),
		Method:          "k-NN Estrus guard",
		Reasoning:       "k-NN predicted Estrus. Gemini predicted Proestrus (72% confident). Final: Estrus via k-NN Estrus guard.",
		KNNPrediction:   types.Estrus.Ptr(),
		KNNScores:       types.ScoreDistribution{types.Estrus: 1, types.Proestrus: 0, types.Metestrus: 0, types.Diestrus: 0},
		JudgePrediction: types.Proestrus.Ptr(),
		JudgeConfidence: &conf,
		CreatedAt:       created,
	}
	id, err := store.Insert(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	legacyID, err := store.Insert(ctx, types.HistoricalRecord{
		Filename:   "legacy.jpg",
		FinalStage: types.Uncertain.Ptr(),
		CreatedAt:  created.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, legacyID, "missing IDs are generated")

	got, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, in, got[0])

	assert.Equal(t, types.Uncertain, *got[1].FinalStage, "stored stage strings are kept verbatim")
	assert.Nil(t, got[1].KNNPrediction)
	assert.Nil(t, got[1].JudgeConfidence)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInsertReplacesSameID(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, types.HistoricalRecord{ID: "x", Filename: "a.jpg", FinalStage: types.Estrus.Ptr()})
	require.NoError(t, err)
	_, err = store.Insert(ctx, types.HistoricalRecord{ID: "x", Filename: "a.jpg", FinalStage: types.Diestrus.Ptr()})
	require.NoError(t, err)

	got, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.Diestrus, *got[0].FinalStage)
}

func TestInsertRequiresFilename(t *testing.T) {
	store, _ := testStore(t)
	_, err := store.Insert(context.Background(), types.HistoricalRecord{ID: "x"})
	assert.ErrorContains(t, err, "no filename")
}

func TestListOptions(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a_DIESTRUS.jpg", "b_ESTRUS.jpg", "c_DIESTRUS.jpg"} {
		_, err := store.Insert(ctx, types.HistoricalRecord{Filename: name, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	got, err := store.List(ctx, ListOptions{FilenameContains: "DIESTRUS"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a_DIESTRUS.jpg", got[0].Filename)

	got, err = store.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveClassification(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	c := types.Classification{
		Filename:   "img.jpg",
		FinalStage: types.Metestrus,
		Method:     "k-NN Metestrus",
		KNN:        types.ClassifierPrediction{Stage: types.Metestrus, Confidence: 0.67},
		KNNScores:  types.ScoreDistribution{types.Metestrus: 0.67, types.Diestrus: 0.33},
		Judge:      &types.ClassifierPrediction{Stage: types.Diestrus, Confidence: 0.6},
		Reasoning:  "k-NN predicted Metestrus.",
	}
	_, err := store.SaveClassification(ctx, c)
	require.NoError(t, err)

	got, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.Metestrus, *got[0].KNNPrediction)
	assert.Equal(t, types.Diestrus, *got[0].JudgePrediction)
	assert.InDelta(t, 0.6, *got[0].JudgeConfidence, 1e-9)
}

func TestFromClassificationJudgeUnavailable(t *testing.T) {
	rec := FromClassification(types.Classification{
		Filename:   "img.jpg",
		FinalStage: types.Estrus,
		KNN:        types.ClassifierPrediction{Stage: types.Estrus, Confidence: 1},
	})
	assert.Nil(t, rec.JudgePrediction)
	assert.Nil(t, rec.JudgeConfidence)
}

func TestFromClassificationNoEvidence(t *testing.T) {
	rec := FromClassification(types.Classification{
		Filename:      "img_ESTRUS.jpg",
		FinalStage:    types.Estrus,
		Method:        "Fallback k-NN",
		KNN:           types.ClassifierPrediction{Stage: types.Diestrus, Confidence: 1},
		KNNScores:     types.JudgeDistribution(types.Diestrus, 1),
		KNNNoEvidence: true,
		Judge:         &types.ClassifierPrediction{Stage: types.Estrus, Confidence: 0.6},
	})
	assert.Nil(t, rec.KNNPrediction)
	assert.Nil(t, rec.KNNScores)
	require.NotNil(t, rec.JudgePrediction)

	records := evaluate.BuildRecords([]types.HistoricalRecord{rec})
	assert.Nil(t, records[0].KNNPrediction, "no-evidence rows are excluded from comparisons")
}

func TestImportYAML(t *testing.T) {
	store, dir := testStore(t)
	ctx := context.Background()

	path := filepath.Join(dir, "history.yaml")
	content := `- id: h1
  filename: slide_PRO_1.jpg
  final_stage: Proestrus
  reasoning: "k-NN predicted Proestrus (votes: Proestrus 2/3, Estrus 1/3). Gemini predicted Estrus (61% confident). Final: Proestrus via k-NN Proestrus."
- id: h2
  filename: slide_DIE_4.jpg
  final_stage: Diestrus
  knn_prediction: Diestrus
  judge_prediction: Diestrus
  judge_confidence: 0.9
- id: broken
  final_stage: Estrus
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var buf bytes.Buffer
	summary, err := store.ImportYAML(ctx, path, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Total())
	assert.True(t, summary.HasFailures())
	assert.Contains(t, buf.String(), "imported: 2, failed: 1")

	got, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	recs := evaluate.BuildRecords(got)
	for _, r := range recs {
		require.NotNil(t, r.GroundTruth)
		require.NotNil(t, r.KNNPrediction)
		require.NotNil(t, r.JudgePrediction)
	}
}

func TestImportYAMLMissingFile(t *testing.T) {
	store, dir := testStore(t)
	_, err := store.ImportYAML(context.Background(), filepath.Join(dir, "nope.yaml"), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSaveAndLoadRun(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	gt := types.Diestrus
	recs := []types.EvaluationRecord{{
		ID: "r", Filename: "x_DIESTRUS.jpg", GroundTruth: &gt,
		KNNPrediction: types.Diestrus.Ptr(), JudgePrediction: types.Diestrus.Ptr(), FinalPrediction: types.Diestrus.Ptr(),
	}}
	rep, err := evaluate.Evaluate(recs, evaluate.DefaultStrategies(ensemble.NewEngine(types.DefaultEnsembleConfig(), nil)), evaluate.Options{})
	require.NoError(t, err)

	id, err := store.SaveRun(ctx, rep)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, id)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 1, runs[0].Comparable)
	assert.InDelta(t, 1.0, runs[0].CandidateAccuracy, 1e-9)

	loaded, err := store.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rep.Comparable, loaded.Comparable)
	assert.Equal(t, rep.Agreement, loaded.Agreement)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: types.DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &Store{driver: types.DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}
