// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate measures decision strategies against ground truth
// inferred from filenames.
//
// Every statistic in a report is computed over the same comparable subset:
// records with ground truth, a k-NN prediction, a judge prediction and a
// stored final prediction. Records missing any of these are counted by the
// first missing item and left out of all statistics.
package evaluate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// ErrNoComparableRecords is returned when no record passes inclusion.
var ErrNoComparableRecords = errors.New("no comparable records: need ground truth, k-NN, judge and stored final prediction")

// Exclusion reasons, in the order they are checked.
const (
	ExcludedNoGroundTruth = "no_ground_truth"
	ExcludedNoKNN         = "no_knn_prediction"
	ExcludedNoJudge       = "no_judge_prediction"
	ExcludedNoFinal       = "no_final_prediction"
)

// Options controls the baseline/candidate comparison.
type Options struct {
	// Baseline and Candidate name strategies (defaults "old" and "new").
	Baseline  string
	Candidate string

	// MaxChanges caps the listed improvements and regressions. Counts are
	// never capped. 0 means no cap.
	MaxChanges int
}

// ConfusionMatrix counts predictions; rows are ground truth and columns are
// predicted stages, both in cycle order.
type ConfusionMatrix [types.NumStages][types.NumStages]int

// StageStats holds per-stage figures for one strategy.
type StageStats struct {
	Stage     types.Stage `json:"stage" yaml:"stage"`
	Support   int         `json:"support" yaml:"support"`
	Correct   int         `json:"correct" yaml:"correct"`
	Predicted int         `json:"predicted" yaml:"predicted"`
	Precision float64     `json:"precision" yaml:"precision"`
	Recall    float64     `json:"recall" yaml:"recall"`
	F1        float64     `json:"f1" yaml:"f1"`
}

// Accuracy is the share of this stage's records predicted correctly, which
// equals Recall.
func (s StageStats) Accuracy() float64 { return s.Recall }

// StrategyResult is one strategy's score on the comparable subset.
type StrategyResult struct {
	Name      string          `json:"name" yaml:"name"`
	Correct   int             `json:"correct" yaml:"correct"`
	Total     int             `json:"total" yaml:"total"`
	Accuracy  float64         `json:"accuracy" yaml:"accuracy"`
	Missing   int             `json:"missing,omitempty" yaml:"missing,omitempty"`
	PerStage  []StageStats    `json:"per_stage" yaml:"per_stage"`
	Confusion ConfusionMatrix `json:"confusion" yaml:"confusion"`
}

// AgreementStats describes how often the two classifiers agree and who is
// right when they do not.
type AgreementStats struct {
	Agree          int `json:"agree" yaml:"agree"`
	AgreeBothRight int `json:"agree_both_right" yaml:"agree_both_right"`
	Disagree       int `json:"disagree" yaml:"disagree"`
	KNNRight       int `json:"disagree_knn_right" yaml:"disagree_knn_right"`
	JudgeRight     int `json:"disagree_judge_right" yaml:"disagree_judge_right"`
	BothWrong      int `json:"disagree_both_wrong" yaml:"disagree_both_wrong"`
}

// Calibration compares the judge's reported confidence when right and wrong.
// Records without a confidence are not counted.
type Calibration struct {
	CorrectCount     int     `json:"correct_count" yaml:"correct_count"`
	MeanWhenCorrect  float64 `json:"mean_when_correct" yaml:"mean_when_correct"`
	IncorrectCount   int     `json:"incorrect_count" yaml:"incorrect_count"`
	MeanWhenWrong    float64 `json:"mean_when_wrong" yaml:"mean_when_wrong"`
	MissingConfCount int     `json:"missing_confidence" yaml:"missing_confidence"`
}

// Change is a record where the candidate and baseline differ in correctness.
type Change struct {
	ID          string      `json:"id" yaml:"id"`
	Filename    string      `json:"filename" yaml:"filename"`
	GroundTruth types.Stage `json:"ground_truth" yaml:"ground_truth"`
	Baseline    types.Stage `json:"baseline" yaml:"baseline"`
	Candidate   types.Stage `json:"candidate" yaml:"candidate"`
}

// MethodStats is the candidate's accuracy per rule tag.
type MethodStats struct {
	Method   string  `json:"method" yaml:"method"`
	Count    int     `json:"count" yaml:"count"`
	Correct  int     `json:"correct" yaml:"correct"`
	Accuracy float64 `json:"accuracy" yaml:"accuracy"`
}

// Report is the full evaluation output.
type Report struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`

	TotalRecords int            `json:"total_records" yaml:"total_records"`
	Comparable   int            `json:"comparable" yaml:"comparable"`
	Excluded     map[string]int `json:"excluded" yaml:"excluded"`

	Strategies  []StrategyResult `json:"strategies" yaml:"strategies"`
	Agreement   AgreementStats   `json:"agreement" yaml:"agreement"`
	Calibration Calibration      `json:"calibration" yaml:"calibration"`

	Baseline         string   `json:"baseline" yaml:"baseline"`
	Candidate        string   `json:"candidate" yaml:"candidate"`
	ImprovementCount int      `json:"improvement_count" yaml:"improvement_count"`
	RegressionCount  int      `json:"regression_count" yaml:"regression_count"`
	Improvements     []Change `json:"improvements" yaml:"improvements"`
	Regressions      []Change `json:"regressions" yaml:"regressions"`

	Methods []MethodStats `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Strategy returns the named strategy result.
func (r *Report) Strategy(name string) (StrategyResult, bool) {
	for _, s := range r.Strategies {
		if s.Name == name {
			return s, true
		}
	}
	return StrategyResult{}, false
}

// TotalExcluded sums the exclusion counts.
func (r *Report) TotalExcluded() int {
	n := 0
	for _, c := range r.Excluded {
		n += c
	}
	return n
}

// exclusionReason returns the first missing item, or "" when comparable.
func exclusionReason(rec types.EvaluationRecord) string {
	switch {
	case rec.GroundTruth == nil || !rec.GroundTruth.Valid():
		return ExcludedNoGroundTruth
	case rec.KNNPrediction == nil || !rec.KNNPrediction.Valid():
		return ExcludedNoKNN
	case rec.JudgePrediction == nil || !rec.JudgePrediction.Valid():
		return ExcludedNoJudge
	case rec.FinalPrediction == nil || !rec.FinalPrediction.Valid():
		return ExcludedNoFinal
	}
	return ""
}

// Evaluate scores every strategy over the comparable subset of records.
func Evaluate(records []types.EvaluationRecord, strategies []Strategy, opts Options) (*Report, error) {
	if opts.Baseline == "" {
		opts.Baseline = StrategyStored
	}
	if opts.Candidate == "" {
		opts.Candidate = StrategyCascade
	}
	baseline, candidate := findStrategy(strategies, opts.Baseline), findStrategy(strategies, opts.Candidate)
	if baseline == nil {
		return nil, fmt.Errorf("unknown baseline strategy %q", opts.Baseline)
	}
	if candidate == nil {
		return nil, fmt.Errorf("unknown candidate strategy %q", opts.Candidate)
	}

	rep := &Report{
		RunID:        uuid.New().String(),
		GeneratedAt:  time.Now().UTC(),
		TotalRecords: len(records),
		Excluded:     make(map[string]int),
		Baseline:     opts.Baseline,
		Candidate:    opts.Candidate,
		Improvements: []Change{},
		Regressions:  []Change{},
	}

	var comparable []types.EvaluationRecord
	for _, rec := range records {
		if reason := exclusionReason(rec); reason != "" {
			rep.Excluded[reason]++
			continue
		}
		comparable = append(comparable, rec)
	}
	rep.Comparable = len(comparable)
	if len(comparable) == 0 {
		return nil, ErrNoComparableRecords
	}

	for _, s := range strategies {
		rep.Strategies = append(rep.Strategies, scoreStrategy(s, comparable))
	}
	rep.Agreement = agreement(comparable)
	rep.Calibration = calibration(comparable)
	compare(rep, *baseline, *candidate, comparable, opts.MaxChanges)
	if candidate.Method != nil {
		rep.Methods = methodBreakdown(*candidate, comparable)
	}
	return rep, nil
}

func findStrategy(strategies []Strategy, name string) *Strategy {
	for i := range strategies {
		if strategies[i].Name == name {
			return &strategies[i]
		}
	}
	return nil
}

func scoreStrategy(s Strategy, records []types.EvaluationRecord) StrategyResult {
	res := StrategyResult{Name: s.Name, Total: len(records)}
	for _, rec := range records {
		truth := *rec.GroundTruth
		pred := s.Predict(rec)
		if pred == nil || !pred.Valid() {
			res.Missing++
			continue
		}
		res.Confusion[truth.Index()][pred.Index()]++
		if *pred == truth {
			res.Correct++
		}
	}
	res.Accuracy = ratio(res.Correct, res.Total)

	for i, st := range types.Stages {
		ss := StageStats{Stage: st, Correct: res.Confusion[i][i]}
		for j := range types.Stages {
			ss.Predicted += res.Confusion[j][i]
		}
		for _, rec := range records {
			if *rec.GroundTruth == st {
				ss.Support++
			}
		}
		ss.Precision = ratio(ss.Correct, ss.Predicted)
		ss.Recall = ratio(ss.Correct, ss.Support)
		if ss.Precision+ss.Recall > 0 {
			ss.F1 = 2 * ss.Precision * ss.Recall / (ss.Precision + ss.Recall)
		}
		res.PerStage = append(res.PerStage, ss)
	}
	return res
}

func agreement(records []types.EvaluationRecord) AgreementStats {
	var a AgreementStats
	for _, rec := range records {
		truth, knn, judge := *rec.GroundTruth, *rec.KNNPrediction, *rec.JudgePrediction
		if knn == judge {
			a.Agree++
			if knn == truth {
				a.AgreeBothRight++
			}
			continue
		}
		a.Disagree++
		switch truth {
		case knn:
			a.KNNRight++
		case judge:
			a.JudgeRight++
		default:
			a.BothWrong++
		}
	}
	return a
}

func calibration(records []types.EvaluationRecord) Calibration {
	var c Calibration
	var right, wrong []float64
	for _, rec := range records {
		if rec.JudgeConfidence == nil {
			c.MissingConfCount++
			continue
		}
		conf := types.ClampUnit(*rec.JudgeConfidence)
		if *rec.JudgePrediction == *rec.GroundTruth {
			right = append(right, conf)
		} else {
			wrong = append(wrong, conf)
		}
	}
	c.CorrectCount, c.IncorrectCount = len(right), len(wrong)
	if len(right) > 0 {
		c.MeanWhenCorrect = stat.Mean(right, nil)
	}
	if len(wrong) > 0 {
		c.MeanWhenWrong = stat.Mean(wrong, nil)
	}
	return c
}

func compare(rep *Report, baseline, candidate Strategy, records []types.EvaluationRecord, maxChanges int) {
	for _, rec := range records {
		truth := *rec.GroundTruth
		b, c := baseline.Predict(rec), candidate.Predict(rec)
		bRight := b != nil && *b == truth
		cRight := c != nil && *c == truth
		if bRight == cRight {
			continue
		}
		ch := Change{ID: rec.ID, Filename: rec.Filename, GroundTruth: truth}
		if b != nil {
			ch.Baseline = *b
		}
		if c != nil {
			ch.Candidate = *c
		}
		if cRight {
			rep.ImprovementCount++
			if maxChanges <= 0 || len(rep.Improvements) < maxChanges {
				rep.Improvements = append(rep.Improvements, ch)
			}
		} else {
			rep.RegressionCount++
			if maxChanges <= 0 || len(rep.Regressions) < maxChanges {
				rep.Regressions = append(rep.Regressions, ch)
			}
		}
	}
}

func methodBreakdown(s Strategy, records []types.EvaluationRecord) []MethodStats {
	byMethod := make(map[string]*MethodStats)
	for _, rec := range records {
		m := s.Method(rec)
		ms, ok := byMethod[m]
		if !ok {
			ms = &MethodStats{Method: m}
			byMethod[m] = ms
		}
		ms.Count++
		if p := s.Predict(rec); p != nil && *p == *rec.GroundTruth {
			ms.Correct++
		}
	}
	out := make([]MethodStats, 0, len(byMethod))
	for _, ms := range byMethod {
		ms.Accuracy = ratio(ms.Correct, ms.Count)
		out = append(out, *ms)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
