// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reasoning reads and writes the free-text rationale stored with each
// classification.
//
// Older rows carry their classifier inputs only inside this text. New rows
// persist structured fields as well; Parse is kept for importing and
// evaluating legacy data.
package reasoning

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

var (
	// knnPattern matches "k-NN predicted Estrus".
	knnPattern = regexp.MustCompile(`(?i)\bk-?nn\s+predicted\s+([a-z]+)`)

	// judgePattern matches "Gemini predicted Diestrus (92% confident)". The
	// name may run to four words ("Gemini 2.5 Flash") but never crosses
	// sentence punctuation.
	judgePattern = regexp.MustCompile(`(?i)\b([a-z][\w-]*(?:\s+[\w.-]*\w){0,3}?)\s+predicted\s+([a-z]+)\s*\(\s*(\d+(?:\.\d+)?)\s*%\s*confident\s*\)`)

	// votesPattern captures the vote list after "votes:".
	votesPattern = regexp.MustCompile(`(?i)\bvotes?:\s*([^\n;)]*)`)

	// voteItemPattern matches "Estrus 3/5".
	voteItemPattern = regexp.MustCompile(`(?i)([a-z]+)\s+(\d+)\s*/\s*(\d+)`)

	knnName = regexp.MustCompile(`(?i)\bk-?nn$`)

	noEvidencePattern = regexp.MustCompile(`(?i)no reference images available`)
)

// NoEvidence is written in place of a k-NN announcement when the match
// service returned no usable neighbors.
const NoEvidence = "No reference images available for k-NN; defaulting to Diestrus."

// Parsed holds the classifier inputs recovered from a rationale. Fields are
// nil when the text does not contain them or the stage token is not a cycle
// stage.
type Parsed struct {
	KNNPrediction   *types.Stage            `json:"knn_prediction,omitempty" yaml:"knn_prediction,omitempty"`
	KNNScores       types.ScoreDistribution `json:"knn_scores,omitempty" yaml:"knn_scores,omitempty"`
	JudgeName       string                  `json:"judge_name,omitempty" yaml:"judge_name,omitempty"`
	JudgePrediction *types.Stage            `json:"judge_prediction,omitempty" yaml:"judge_prediction,omitempty"`
	JudgeConfidence *float64                `json:"judge_confidence,omitempty" yaml:"judge_confidence,omitempty"`

	// NoEvidence is set when the k-NN stage in the text is the no-neighbor
	// fallback. KNNPrediction and KNNScores stay nil in that case.
	NoEvidence bool `json:"no_evidence,omitempty" yaml:"no_evidence,omitempty"`
}

// Parse extracts the k-NN and judge announcements from text.
func Parse(text string) Parsed {
	var p Parsed
	if strings.TrimSpace(text) == "" {
		return p
	}

	p.NoEvidence = noEvidencePattern.MatchString(text)
	if m := knnPattern.FindStringSubmatch(text); m != nil && !p.NoEvidence {
		p.KNNPrediction = types.StagePtr(m[1])
	}

	for _, m := range judgePattern.FindAllStringSubmatch(text, -1) {
		if knnName.MatchString(m[1]) {
			continue
		}
		st := types.StagePtr(m[2])
		if st == nil {
			continue
		}
		p.JudgeName = m[1]
		p.JudgePrediction = st
		if pct, err := strconv.ParseFloat(m[3], 64); err == nil {
			conf := types.ClampUnit(pct / 100)
			p.JudgeConfidence = &conf
		}
		break
	}

	if m := votesPattern.FindStringSubmatch(text); m != nil && !p.NoEvidence {
		p.KNNScores = parseVotes(m[1])
	}
	return p
}

// parseVotes turns "Estrus 3/5, Metestrus 2/5" into vote fractions. Items
// with unknown stages or a zero denominator are skipped.
func parseVotes(s string) types.ScoreDistribution {
	var scores types.ScoreDistribution
	for _, m := range voteItemPattern.FindAllStringSubmatch(s, -1) {
		st, ok := types.ParseStage(m[1])
		if !ok {
			continue
		}
		num, err1 := strconv.Atoi(m[2])
		den, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || den == 0 {
			continue
		}
		if scores == nil {
			scores = make(types.ScoreDistribution, types.NumStages)
		}
		scores[st] = float64(num) / float64(den)
	}
	if scores == nil {
		return nil
	}
	return scores.Complete()
}

// Inputs is everything Format needs to write a rationale.
type Inputs struct {
	KNN       types.ClassifierPrediction
	KNNScores types.ScoreDistribution
	// Neighbors is the neighbor count behind KNNScores; 0 omits the votes.
	Neighbors int

	JudgeName string
	// Judge is nil when the judge was unavailable.
	Judge *types.ClassifierPrediction

	Decision types.EnsembleDecision
}

// Format writes a rationale that Parse reads back.
func Format(in Inputs) string {
	var b strings.Builder

	fmt.Fprintf(&b, "k-NN predicted %s", in.KNN.Stage)
	if in.Neighbors > 0 && len(in.KNNScores) > 0 {
		var votes []string
		for _, st := range types.Stages {
			n := int(math.Round(in.KNNScores[st] * float64(in.Neighbors)))
			if n > 0 {
				votes = append(votes, fmt.Sprintf("%s %d/%d", st, n, in.Neighbors))
			}
		}
		fmt.Fprintf(&b, " (votes: %s)", strings.Join(votes, ", "))
	}
	b.WriteString(". ")

	name := in.JudgeName
	if name == "" {
		name = "Judge"
	}
	if in.Judge != nil {
		pct := math.Round(types.ClampUnit(in.Judge.Confidence)*1000) / 10
		fmt.Fprintf(&b, "%s predicted %s (%s%% confident). ",
			name, in.Judge.Stage, strconv.FormatFloat(pct, 'f', -1, 64))
	} else {
		fmt.Fprintf(&b, "%s unavailable. ", name)
	}

	fmt.Fprintf(&b, "Final: %s via %s.", in.Decision.FinalStage, in.Decision.Method)
	return b.String()
}
