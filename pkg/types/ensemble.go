// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Neighbor is one reference image returned by the similarity service.
// Neighbors arrive ordered by similarity, most similar first.
type Neighbor struct {
	ID                 string  `json:"id" yaml:"id"`
	Label              Stage   `json:"label" yaml:"label"`
	Similarity         float64 `json:"similarity" yaml:"similarity"`
	ReferenceImagePath string  `json:"image_path" yaml:"image_path"`
}

// StagePair keys the override table by both classifiers' raw outputs.
type StagePair struct {
	KNN   Stage `json:"knn" yaml:"knn"`
	Judge Stage `json:"judge" yaml:"judge"`
}

// String renders the pair as "knn+judge".
func (p StagePair) String() string {
	return fmt.Sprintf("%s+%s", p.KNN, p.Judge)
}

// PairOverrideEntry is the learned final stage for a StagePair and the number
// of labeled examples that back it.
type PairOverrideEntry struct {
	Stage   Stage `json:"stage" yaml:"stage"`
	Support int   `json:"support" yaml:"support"`
}

// EnsembleDecision is the final label plus the tag of the rule that fired.
// Method is diagnostic only.
type EnsembleDecision struct {
	FinalStage Stage  `json:"final_stage" yaml:"final_stage"`
	Method     string `json:"method" yaml:"method"`
}

// EvaluationRecord joins one historical decision with its inferred ground
// truth. Absent values are nil; they are never defaulted to a stage.
type EvaluationRecord struct {
	ID       string `json:"id" yaml:"id"`
	Filename string `json:"filename" yaml:"filename"`

	// GroundTruth is inferred from the filename. Nil when the filename
	// carries no recognizable stage token.
	GroundTruth *Stage `json:"ground_truth,omitempty" yaml:"ground_truth,omitempty"`

	KNNPrediction   *Stage            `json:"knn_prediction,omitempty" yaml:"knn_prediction,omitempty"`
	KNNScores       ScoreDistribution `json:"knn_scores,omitempty" yaml:"knn_scores,omitempty"`
	JudgePrediction *Stage            `json:"judge_prediction,omitempty" yaml:"judge_prediction,omitempty"`
	JudgeConfidence *float64          `json:"judge_confidence,omitempty" yaml:"judge_confidence,omitempty"`

	// FinalPrediction is the decision that was stored at classification time.
	FinalPrediction *Stage `json:"final_prediction,omitempty" yaml:"final_prediction,omitempty"`
}

// Labeled reports whether ground truth could be inferred.
func (r EvaluationRecord) Labeled() bool { return r.GroundTruth != nil }

// IsMatch reports whether the stored final prediction equals ground truth.
// Unlabeled records and records without a stored prediction never match.
func (r EvaluationRecord) IsMatch() bool {
	return r.GroundTruth != nil && r.FinalPrediction != nil && *r.GroundTruth == *r.FinalPrediction
}

// HistoricalRecord is one stored classification as read from the records
// store. The structured prediction fields are optional; legacy rows carry
// their classifier inputs only inside Reasoning.
type HistoricalRecord struct {
	ID              string            `json:"id" yaml:"id"`
	Filename        string            `json:"filename" yaml:"filename"`
	FinalStage      *Stage            `json:"final_stage,omitempty" yaml:"final_stage,omitempty"`
	Method          string            `json:"method,omitempty" yaml:"method,omitempty"`
	Reasoning       string            `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	KNNPrediction   *Stage            `json:"knn_prediction,omitempty" yaml:"knn_prediction,omitempty"`
	KNNScores       ScoreDistribution `json:"knn_scores,omitempty" yaml:"knn_scores,omitempty"`
	JudgePrediction *Stage            `json:"judge_prediction,omitempty" yaml:"judge_prediction,omitempty"`
	JudgeConfidence *float64          `json:"judge_confidence,omitempty" yaml:"judge_confidence,omitempty"`
	CreatedAt       time.Time         `json:"created_at" yaml:"created_at"`
}

// Classification is the per-image output of the classification pipeline,
// ready for persistence and display.
type Classification struct {
	Filename        string                `json:"filename" yaml:"filename"`
	FinalStage      Stage                 `json:"final_stage" yaml:"final_stage"`
	Confidence      float64               `json:"confidence" yaml:"confidence"`
	Method          string                `json:"method" yaml:"method"`
	KNN             ClassifierPrediction  `json:"knn" yaml:"knn"`
	KNNScores       ScoreDistribution     `json:"knn_scores" yaml:"knn_scores"`
	// KNNNoEvidence is set when KNN is the no-neighbor fallback rather than
	// a vote.
	KNNNoEvidence   bool                  `json:"knn_no_evidence,omitempty" yaml:"knn_no_evidence,omitempty"`
	Judge           *ClassifierPrediction `json:"judge,omitempty" yaml:"judge,omitempty"`
	JudgeName       string                `json:"judge_name,omitempty" yaml:"judge_name,omitempty"`
	JudgeFeatures   map[string]string     `json:"judge_features,omitempty" yaml:"judge_features,omitempty"`
	JudgeRationale  string                `json:"judge_rationale,omitempty" yaml:"judge_rationale,omitempty"`
	NeighborSummary string                `json:"neighbor_summary" yaml:"neighbor_summary"`
	Reasoning       string                `json:"reasoning" yaml:"reasoning"`
}
