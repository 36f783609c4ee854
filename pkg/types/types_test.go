// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		in     string
		want   Stage
		wantOK bool
	}{
		{"Estrus", Estrus, true},
		{" metestrus ", Metestrus, true},
		{"PROESTTRUS", Proestrus, true},
		{"diestrus", Diestrus, true},
		{"Uncertain", "", false},
		{"", "", false},
		{"estrous", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStage(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Nil(t, StagePtr("bogus"))
	assert.Equal(t, Estrus, *StagePtr("ESTRUS"))
}

func TestStageIndex(t *testing.T) {
	for i, st := range Stages {
		assert.Equal(t, i, st.Index())
		assert.True(t, st.Valid())
	}
	assert.Equal(t, -1, Uncertain.Index())
	assert.False(t, Uncertain.Valid())
}

func TestArgmaxTieUsesCycleOrder(t *testing.T) {
	d := ScoreDistribution{Metestrus: 0.4, Estrus: 0.4, Diestrus: 0.2}
	st, score, ok := d.Argmax()
	require.True(t, ok)
	assert.Equal(t, Estrus, st)
	assert.InDelta(t, 0.4, score, 1e-9)

	_, _, ok = ScoreDistribution{}.Argmax()
	assert.False(t, ok)
}

func TestJudgeDistribution(t *testing.T) {
	d := JudgeDistribution(Diestrus, 0.7)
	assert.InDelta(t, 1.0, d.Sum(), 1e-9)
	assert.InDelta(t, 0.7, d[Diestrus], 1e-9)
	assert.InDelta(t, 0.1, d[Proestrus], 1e-9)
	assert.Len(t, d, NumStages)

	assert.InDelta(t, 1.0, JudgeDistribution(Estrus, 3).Sum(), 1e-9, "confidence is clamped")
}

func TestComplete(t *testing.T) {
	d := ScoreDistribution{Estrus: 1}.Complete()
	assert.Len(t, d, NumStages)
	assert.Zero(t, d[Proestrus])
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, ClampUnit(-0.2))
	assert.Equal(t, 1.0, ClampUnit(1.5))
	assert.Equal(t, 0.0, ClampUnit(math.NaN()))
	assert.Equal(t, 0.42, ClampUnit(0.42))
}

func TestConfidenceDecoding(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		kind    ConfidenceKind
		want    float64
		wantErr bool
	}{
		{"fraction", `0.85`, ConfidenceNumber, 0.85, false},
		{"percentage", `85`, ConfidenceNumber, 0.85, false},
		{"object", `{"score": 0.6}`, ConfidenceObject, 0.6, false},
		{"string percent", `"72%"`, ConfidenceString, 0.72, false},
		{"above range", `140`, ConfidenceNumber, 1, false},
		{"negative", `-3`, ConfidenceNumber, 0, false},
		{"null", `null`, ConfidenceAbsent, 0, false},
		{"object without score", `{"value": 1}`, "", 0, true},
		{"non numeric string", `"high"`, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Confidence
			err := json.Unmarshal([]byte(tt.in), &c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.InDelta(t, tt.want, c.Value(), 1e-9)
		})
	}
}

func TestConfidenceInStruct(t *testing.T) {
	var v struct {
		Stage      string     `json:"stage"`
		Confidence Confidence `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"stage": "Estrus"}`), &v))
	assert.False(t, v.Confidence.Present())

	require.NoError(t, json.Unmarshal([]byte(`{"stage": "Estrus", "confidence": {"score": 91}}`), &v))
	assert.True(t, v.Confidence.Present())
	assert.InDelta(t, 0.91, v.Confidence.Value(), 1e-9)

	out, err := json.Marshal(v.Confidence)
	require.NoError(t, err)
	assert.Equal(t, "0.91", string(out))
}

func TestEvaluationRecordIsMatch(t *testing.T) {
	r := EvaluationRecord{GroundTruth: Estrus.Ptr(), FinalPrediction: Estrus.Ptr()}
	assert.True(t, r.IsMatch())
	r.FinalPrediction = nil
	assert.False(t, r.IsMatch())
}
