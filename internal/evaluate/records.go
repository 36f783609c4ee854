// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"github.com/pdiddy/estrus-ensemble/internal/groundtruth"
	"github.com/pdiddy/estrus-ensemble/internal/reasoning"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// BuildRecords joins stored classifications with the ground truth inferred
// from their filenames. Structured prediction fields win; rows that lack
// them fall back to what the reasoning text announces.
func BuildRecords(history []types.HistoricalRecord) []types.EvaluationRecord {
	out := make([]types.EvaluationRecord, 0, len(history))
	for _, h := range history {
		rec := types.EvaluationRecord{
			ID:              h.ID,
			Filename:        h.Filename,
			GroundTruth:     groundtruth.Ptr(h.Filename),
			KNNPrediction:   validPtr(h.KNNPrediction),
			KNNScores:       h.KNNScores,
			JudgePrediction: validPtr(h.JudgePrediction),
			JudgeConfidence: h.JudgeConfidence,
			FinalPrediction: validPtr(h.FinalStage),
		}

		if rec.KNNPrediction == nil || rec.JudgePrediction == nil || len(rec.KNNScores) == 0 || rec.JudgeConfidence == nil {
			p := reasoning.Parse(h.Reasoning)
			if rec.KNNPrediction == nil {
				rec.KNNPrediction = p.KNNPrediction
			}
			if len(rec.KNNScores) == 0 {
				rec.KNNScores = p.KNNScores
			}
			if rec.JudgePrediction == nil {
				rec.JudgePrediction = p.JudgePrediction
				rec.JudgeConfidence = p.JudgeConfidence
			} else if rec.JudgeConfidence == nil && p.JudgePrediction != nil && *p.JudgePrediction == *rec.JudgePrediction {
				rec.JudgeConfidence = p.JudgeConfidence
			}
		}
		out = append(out, rec)
	}
	return out
}

// validPtr drops Uncertain and unknown stages.
func validPtr(s *types.Stage) *types.Stage {
	if s == nil || !s.Valid() {
		return nil
	}
	return s
}
