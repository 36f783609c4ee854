// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"github.com/pdiddy/estrus-ensemble/internal/ensemble"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Default strategy names.
const (
	StrategyStored   = "old"
	StrategyCascade  = "new"
	StrategyKNN      = "knn"
	StrategyJudge    = "judge"
	StrategyWeighted = "weighted"
)

// Strategy is a named prediction rule applied to every comparable record.
// Predict must be pure; a nil result counts as a miss.
type Strategy struct {
	Name    string
	Predict func(types.EvaluationRecord) *types.Stage

	// Method optionally returns the rule tag behind a prediction. Reports
	// break the candidate strategy down by it.
	Method func(types.EvaluationRecord) string
}

// DefaultStrategies returns the stored decision, the cascade engine, each
// classifier alone and the legacy weighted blend.
func DefaultStrategies(eng *ensemble.Engine) []Strategy {
	return []Strategy{
		{
			Name:    StrategyStored,
			Predict: func(r types.EvaluationRecord) *types.Stage { return r.FinalPrediction },
		},
		{
			Name: StrategyCascade,
			Predict: func(r types.EvaluationRecord) *types.Stage {
				return cascade(eng, r).FinalStage.Ptr()
			},
			Method: func(r types.EvaluationRecord) string { return cascade(eng, r).Method },
		},
		{
			Name:    StrategyKNN,
			Predict: func(r types.EvaluationRecord) *types.Stage { return r.KNNPrediction },
		},
		{
			Name:    StrategyJudge,
			Predict: func(r types.EvaluationRecord) *types.Stage { return r.JudgePrediction },
		},
		{
			Name: StrategyWeighted,
			Predict: func(r types.EvaluationRecord) *types.Stage {
				return eng.Weighted(stageOf(r.KNNPrediction), r.KNNScores, stageOf(r.JudgePrediction), confOf(r)).FinalStage.Ptr()
			},
			Method: func(r types.EvaluationRecord) string {
				return eng.Weighted(stageOf(r.KNNPrediction), r.KNNScores, stageOf(r.JudgePrediction), confOf(r)).Method
			},
		},
	}
}

func cascade(eng *ensemble.Engine, r types.EvaluationRecord) types.EnsembleDecision {
	return eng.Decide(stageOf(r.KNNPrediction), stageOf(r.JudgePrediction), confOf(r))
}

func stageOf(s *types.Stage) types.Stage {
	if s == nil {
		return ""
	}
	return *s
}

// confOf returns the judge confidence, or 0 when it was not recorded.
func confOf(r types.EvaluationRecord) float64 {
	if r.JudgeConfidence == nil {
		return 0
	}
	return *r.JudgeConfidence
}
