// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knn turns the nearest reference images of a query into a stage
// vote.
package knn

import (
	"fmt"
	"strings"

	"github.com/pdiddy/estrus-ensemble/internal/reasoning"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// NoEvidenceReasoning explains the fallback decision made when the match
// service returned no usable neighbors.
const NoEvidenceReasoning = reasoning.NoEvidence

// fallbackPrediction is the business-policy default for missing evidence.
var fallbackPrediction = types.ClassifierPrediction{Stage: types.Diestrus, Confidence: 1.0}

// Vote tallies one vote per neighbor and divides by the neighbor count.
// Every cycle stage is present in the result. Neighbors whose label is not a
// cycle stage are dropped before counting. It returns false when no neighbor
// is left, which callers must treat as "no k-NN evidence".
func Vote(neighbors []types.Neighbor) (types.ScoreDistribution, bool) {
	counts := make(map[types.Stage]int, types.NumStages)
	n := 0
	for _, nb := range neighbors {
		if !nb.Label.Valid() {
			continue
		}
		counts[nb.Label]++
		n++
	}
	if n == 0 {
		return nil, false
	}

	scores := make(types.ScoreDistribution, types.NumStages)
	for _, st := range types.Stages {
		scores[st] = float64(counts[st]) / float64(n)
	}
	return scores, true
}

// Result is a k-NN prediction with its vote distribution.
type Result struct {
	Prediction types.ClassifierPrediction
	Scores     types.ScoreDistribution

	// Neighbors is the number of votes counted.
	Neighbors int

	// NoEvidence is set when the fallback prediction was used.
	NoEvidence bool
	Reasoning  string
}

// Predict votes and picks the majority stage; ties go to the stage that
// comes first in cycle order. Without evidence it returns the Diestrus
// fallback with full confidence.
func Predict(neighbors []types.Neighbor) Result {
	scores, ok := Vote(neighbors)
	if !ok {
		return Result{
			Prediction: fallbackPrediction,
			Scores:     types.JudgeDistribution(fallbackPrediction.Stage, fallbackPrediction.Confidence),
			NoEvidence: true,
			Reasoning:  NoEvidenceReasoning,
		}
	}

	stage, score, _ := scores.Argmax()
	n := 0
	for _, nb := range neighbors {
		if nb.Label.Valid() {
			n++
		}
	}
	return Result{
		Prediction: types.ClassifierPrediction{Stage: stage, Confidence: score},
		Scores:     scores,
		Neighbors:  n,
	}
}

// Summary renders the neighbor list for display, e.g.
// "Estrus (0.93), Estrus (0.91), Metestrus (0.88)".
func Summary(neighbors []types.Neighbor) string {
	if len(neighbors) == 0 {
		return "no neighbors"
	}
	parts := make([]string, len(neighbors))
	for i, nb := range neighbors {
		parts[i] = fmt.Sprintf("%s (%.2f)", nb.Label, nb.Similarity)
	}
	return strings.Join(parts, ", ")
}
