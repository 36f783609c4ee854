// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"math"
	"strings"
)

// Stage is a phase of the estrous cycle.
type Stage string

const (
	Proestrus Stage = "Proestrus"
	Estrus    Stage = "Estrus"
	Metestrus Stage = "Metestrus"
	Diestrus  Stage = "Diestrus"

	// Uncertain is reported only when a classifier explicitly cannot decide.
	// It never appears in a decision or in a confusion matrix.
	Uncertain Stage = "Uncertain"
)

// Stages lists the four cycle stages in cycle order. Cycle order is also the
// deterministic tie-break order wherever scores are equal.
var Stages = [...]Stage{Proestrus, Estrus, Metestrus, Diestrus}

// NumStages is the size of the closed stage enumeration.
const NumStages = len(Stages)

// Index returns the position of s in Stages, or -1 for Uncertain and
// unrecognized values.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the four cycle stages.
func (s Stage) Valid() bool { return s.Index() >= 0 }

// String returns the stage name.
func (s Stage) String() string { return string(s) }

// Ptr returns a pointer to a copy of s.
func (s Stage) Ptr() *Stage { return &s }

// stageAliases maps uppercase tokens to stages. PROESTTRUS is a typo that
// occurs in real dataset filenames.
var stageAliases = map[string]Stage{
	"PROESTRUS":  Proestrus,
	"PROESTTRUS": Proestrus,
	"ESTRUS":     Estrus,
	"METESTRUS":  Metestrus,
	"DIESTRUS":   Diestrus,
}

// ParseStage validates a stage token case-insensitively. Uncertain and
// anything outside the enumeration return false.
func ParseStage(s string) (Stage, bool) {
	st, ok := stageAliases[strings.ToUpper(strings.TrimSpace(s))]
	return st, ok
}

// StagePtr parses s and returns nil when it is not a cycle stage.
func StagePtr(s string) *Stage {
	st, ok := ParseStage(s)
	if !ok {
		return nil
	}
	return &st
}

// ClassifierPrediction is one classifier's winning stage and its confidence.
// Confidences from different classifiers are not on a comparable scale.
type ClassifierPrediction struct {
	Stage      Stage   `json:"stage" yaml:"stage"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// ScoreDistribution maps each stage to a non-negative score.
type ScoreDistribution map[Stage]float64

// Sum returns the total mass of the distribution.
func (d ScoreDistribution) Sum() float64 {
	total := 0.0
	for _, v := range d {
		total += v
	}
	return total
}

// Argmax returns the highest-scoring cycle stage. Ties resolve to the stage
// that comes first in cycle order. An empty distribution returns false.
func (d ScoreDistribution) Argmax() (Stage, float64, bool) {
	best := Stage("")
	bestScore := math.Inf(-1)
	for _, st := range Stages {
		v, ok := d[st]
		if !ok {
			continue
		}
		if v > bestScore {
			best, bestScore = st, v
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// Complete returns a copy of d with every cycle stage present.
func (d ScoreDistribution) Complete() ScoreDistribution {
	out := make(ScoreDistribution, NumStages)
	for _, st := range Stages {
		out[st] = d[st]
	}
	return out
}

// JudgeDistribution expands a single winner and confidence into a full
// distribution: the winner receives conf and the remaining mass is spread
// uniformly over the other three stages, so the result sums to 1.
func JudgeDistribution(winner Stage, conf float64) ScoreDistribution {
	conf = ClampUnit(conf)
	rest := (1 - conf) / float64(NumStages-1)
	d := make(ScoreDistribution, NumStages)
	for _, st := range Stages {
		if st == winner {
			d[st] = conf
		} else {
			d[st] = rest
		}
	}
	return d
}

// ClampUnit clamps v to [0,1]. NaN becomes 0.
func ClampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
