// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// ImportSummary holds counts from an import run.
type ImportSummary struct {
	Imported int
	Failed   int
}

// Total returns the number of records processed.
func (s ImportSummary) Total() int {
	return s.Imported + s.Failed
}

// HasFailures reports whether any record failed to import.
func (s ImportSummary) HasFailures() bool {
	return s.Failed > 0
}

// ImportYAML loads a YAML list of historical records and stores them in one
// transaction. Records that fail validation are reported and skipped; a
// database error aborts the import.
func (s *Store) ImportYAML(ctx context.Context, path string, w io.Writer) (ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var recs []types.HistoricalRecord
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return ImportSummary{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(upsertClassification)
	var summary ImportSummary
	for i, rec := range recs {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if rec.Filename == "" {
			fmt.Fprintf(w, "failed  record %d: no filename\n", i)
			summary.Failed++
			continue
		}
		id, err := insertWith(ctx, tx, query, rec)
		if err != nil {
			return summary, err
		}
		fmt.Fprintf(w, "imported %s (%s)\n", rec.Filename, id)
		summary.Imported++
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing import: %w", err)
	}
	fmt.Fprintf(w, "\nimported: %d, failed: %d\n", summary.Imported, summary.Failed)
	return summary, nil
}
