// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ensemble

import (
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Weighted is the ensemble the cascade replaced: a linear blend of the k-NN
// vote fractions and the judge distribution, by default 40% k-NN and 60%
// judge. It is kept so evaluations can compare against it.
//
// When knnScores is empty the k-NN prediction counts as a full vote.
func (e *Engine) Weighted(knn types.Stage, knnScores types.ScoreDistribution, judge types.Stage, judgeConf float64) types.EnsembleDecision {
	if !judge.Valid() {
		return e.DecideKNNOnly(knn)
	}
	if len(knnScores) == 0 {
		if !knn.Valid() {
			return e.Decide(knn, judge, judgeConf)
		}
		knnScores = types.ScoreDistribution{knn: 1}
	}

	judgeScores := types.JudgeDistribution(judge, judgeConf)
	combined := make(types.ScoreDistribution, types.NumStages)
	for _, st := range types.Stages {
		combined[st] = e.cfg.KNNWeight*knnScores[st] + e.cfg.JudgeWeight*judgeScores[st]
	}

	stage, _, _ := combined.Argmax()
	return types.EnsembleDecision{FinalStage: stage, Method: MethodWeighted}
}
