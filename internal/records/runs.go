// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/estrus-ensemble/internal/evaluate"
)

// RunSummary is one stored evaluation run without its full report.
type RunSummary struct {
	ID                string    `json:"id" yaml:"id"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
	Baseline          string    `json:"baseline" yaml:"baseline"`
	Candidate         string    `json:"candidate" yaml:"candidate"`
	Comparable        int       `json:"comparable" yaml:"comparable"`
	BaselineAccuracy  float64   `json:"baseline_accuracy" yaml:"baseline_accuracy"`
	CandidateAccuracy float64   `json:"candidate_accuracy" yaml:"candidate_accuracy"`
}

// SaveRun stores an evaluation report. A report without a run ID gets one.
func (s *Store) SaveRun(ctx context.Context, rep *evaluate.Report) (string, error) {
	if rep.RunID == "" {
		rep.RunID = uuid.New().String()
	}
	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}

	base, _ := rep.Strategy(rep.Baseline)
	cand, _ := rep.Strategy(rep.Candidate)
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO evaluation_runs (id, created_at, baseline, candidate, comparable, baseline_accuracy, candidate_accuracy, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rep.RunID, rep.GeneratedAt.UTC().Format(time.RFC3339Nano), rep.Baseline, rep.Candidate,
		rep.Comparable, base.Accuracy, cand.Accuracy, string(data),
	)
	if err != nil {
		return "", fmt.Errorf("saving run %s: %w", rep.RunID, err)
	}
	return rep.RunID, nil
}

// Runs lists stored evaluation runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, baseline, candidate, comparable, baseline_accuracy, candidate_accuracy
		 FROM evaluation_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r       RunSummary
			created string
		)
		if err := rows.Scan(&r.ID, &created, &r.Baseline, &r.Candidate, &r.Comparable,
			&r.BaselineAccuracy, &r.CandidateAccuracy); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadRun returns the full stored report for a run.
func (s *Store) LoadRun(ctx context.Context, id string) (*evaluate.Report, error) {
	var data string
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT report FROM evaluation_runs WHERE id = ?`), id).Scan(&data); err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	var rep evaluate.Report
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return &rep, nil
}
