// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package optimize derives the pair override table from labeled history.
//
// For every observed (k-NN, judge) pair it picks the ground truth stage seen
// most often with that pair. Each pair is decided on its own, with no
// regularization across pairs, on the assumption that cells are independent
// given both classifier outputs. The sum of per-pair best counts is the
// accuracy ceiling of any pure pair-lookup strategy ("oracle" accuracy).
package optimize

import (
	"sort"
	"sync"

	"github.com/pdiddy/estrus-ensemble/internal/ensemble"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Example is one labeled observation.
type Example struct {
	GroundTruth types.Stage `json:"ground_truth" yaml:"ground_truth"`
	KNN         types.Stage `json:"knn" yaml:"knn"`
	Judge       types.Stage `json:"judge" yaml:"judge"`
}

// PairMapping is the best achievable mapping for one pair.
type PairMapping struct {
	Pair      types.StagePair     `json:"pair" yaml:"pair"`
	BestStage types.Stage         `json:"best_stage" yaml:"best_stage"`
	Correct   int                 `json:"correct" yaml:"correct"`
	Total     int                 `json:"total" yaml:"total"`
	Counts    map[types.Stage]int `json:"counts" yaml:"counts"`

	// Tied is set when another stage reached the same count and the
	// tie-break policy chose between them.
	Tied bool `json:"tied,omitempty" yaml:"tied,omitempty"`

	// Ambiguous is set when the best stage does not beat the runner-up by
	// the configured margin. Ambiguous pairs are left out of the table.
	Ambiguous bool `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`
}

// Accuracy returns Correct/Total.
func (m PairMapping) Accuracy() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Correct) / float64(m.Total)
}

// Result holds every observed pair's mapping.
type Result struct {
	Pairs       map[types.StagePair]PairMapping `json:"pairs" yaml:"pairs"`
	DatasetSize int                             `json:"dataset_size" yaml:"dataset_size"`
	Skipped     int                             `json:"skipped" yaml:"skipped"`
}

// OracleCorrect sums Correct over all pairs.
func (r Result) OracleCorrect() int {
	total := 0
	for _, m := range r.Pairs {
		total += m.Correct
	}
	return total
}

// OracleAccuracy is OracleCorrect over the dataset size.
func (r Result) OracleAccuracy() float64 {
	if r.DatasetSize == 0 {
		return 0
	}
	return float64(r.OracleCorrect()) / float64(r.DatasetSize)
}

// Sorted returns the mappings in cycle order of (k-NN, judge).
func (r Result) Sorted() []PairMapping {
	out := make([]PairMapping, 0, len(r.Pairs))
	for _, m := range r.Pairs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Pair, out[j].Pair
		if a.KNN != b.KNN {
			return a.KNN.Index() < b.KNN.Index()
		}
		return a.Judge.Index() < b.Judge.Index()
	})
	return out
}

// Table converts the non-ambiguous mappings into an override table whose
// support is each pair's observation count.
func (r Result) Table() (*ensemble.Table, error) {
	var entries []ensemble.TableEntry
	for _, m := range r.Sorted() {
		if m.Ambiguous {
			continue
		}
		entries = append(entries, ensemble.TableEntry{
			KNN:     m.Pair.KNN,
			Judge:   m.Pair.Judge,
			Stage:   m.BestStage,
			Support: m.Total,
		})
	}
	return ensemble.NewTable(entries)
}

// Options controls tie handling.
type Options struct {
	TieBreak  types.TieBreak
	MinMargin int
}

// Optimize partitions the dataset by exact (k-NN, judge) pair and picks each
// pair's most frequent ground truth. Pairs with no observations are omitted.
// Examples with any non-cycle stage are skipped and counted.
func Optimize(dataset []Example, opts Options) Result {
	res := Result{Pairs: make(map[types.StagePair]PairMapping)}

	partitions := make(map[types.StagePair]map[types.Stage]int)
	global := make(map[types.Stage]int, types.NumStages)
	for _, ex := range dataset {
		if !ex.GroundTruth.Valid() || !ex.KNN.Valid() || !ex.Judge.Valid() {
			res.Skipped++
			continue
		}
		key := types.StagePair{KNN: ex.KNN, Judge: ex.Judge}
		if partitions[key] == nil {
			partitions[key] = make(map[types.Stage]int, types.NumStages)
		}
		partitions[key][ex.GroundTruth]++
		global[ex.GroundTruth]++
		res.DatasetSize++
	}

	order := tieOrder(opts.TieBreak, global)

	// Pairs are independent; resolve them concurrently.
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for key, counts := range partitions {
		wg.Add(1)
		go func(key types.StagePair, counts map[types.Stage]int) {
			defer wg.Done()
			m := bestMapping(key, counts, order, opts.MinMargin)
			mu.Lock()
			res.Pairs[key] = m
			mu.Unlock()
		}(key, counts)
	}
	wg.Wait()

	return res
}

// tieOrder returns the stage preference used when counts tie.
func tieOrder(policy types.TieBreak, global map[types.Stage]int) []types.Stage {
	order := append([]types.Stage(nil), types.Stages[:]...)
	if policy == types.TieBreakGlobalFrequency {
		sort.SliceStable(order, func(i, j int) bool {
			return global[order[i]] > global[order[j]]
		})
	}
	return order
}

func bestMapping(key types.StagePair, counts map[types.Stage]int, order []types.Stage, minMargin int) PairMapping {
	m := PairMapping{Pair: key, Counts: make(map[types.Stage]int, len(counts))}
	best, runnerUp := -1, 0
	for _, st := range order {
		c := counts[st]
		m.Total += c
		if c > 0 {
			m.Counts[st] = c
		}
		switch {
		case c > best:
			runnerUp = max(best, 0)
			best = c
			m.BestStage = st
		case c == best:
			runnerUp = c
		default:
			runnerUp = max(runnerUp, c)
		}
	}
	m.Correct = best
	m.Tied = best > 0 && runnerUp == best
	m.Ambiguous = minMargin > 0 && best-runnerUp < minMargin
	return m
}

// FromRecords builds the dataset from evaluation records. Records lacking
// ground truth or either prediction are skipped.
func FromRecords(records []types.EvaluationRecord) []Example {
	out := make([]Example, 0, len(records))
	for _, r := range records {
		if r.GroundTruth == nil || r.KNNPrediction == nil || r.JudgePrediction == nil {
			continue
		}
		out = append(out, Example{
			GroundTruth: *r.GroundTruth,
			KNN:         *r.KNNPrediction,
			Judge:       *r.JudgePrediction,
		})
	}
	return out
}
