// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records persists classifications and evaluation runs.
//
// The store speaks database/sql to either SQLite (mattn/go-sqlite3, the
// default, one file under data/index/) or Postgres through the pgx stdlib
// driver. Queries are written with ? placeholders and rebound for Postgres.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "records.db"
)

// Store manages the records database.
type Store struct {
	db     *sql.DB
	driver types.StoreDriver
}

// NewStore opens or creates the records database and its schema. With the
// SQLite driver and no DSN the database lives at DataDir/index/records.db.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = types.DriverSQLite
	}

	dsn := cfg.DSN
	switch driver {
	case types.DriverSQLite:
		if dsn == "" {
			dataDir := cfg.DataDir
			if dataDir == "" {
				dataDir = "data"
			}
			dbDir := filepath.Join(dataDir, indexDir)
			if err := os.MkdirAll(dbDir, 0o755); err != nil {
				return nil, fmt.Errorf("creating index directory: %w", err)
			}
			dsn = filepath.Join(dbDir, dbFile)
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_foreign_keys=on"
		}
	case types.DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("store driver %s requires a DSN", driver)
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS classifications (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			final_stage TEXT,
			method TEXT,
			reasoning TEXT,
			knn_prediction TEXT,
			knn_scores TEXT,
			judge_prediction TEXT,
			judge_confidence DOUBLE PRECISION,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_classifications_filename ON classifications(filename)`,
		`CREATE TABLE IF NOT EXISTS evaluation_runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			baseline TEXT NOT NULL,
			candidate TEXT NOT NULL,
			comparable INTEGER NOT NULL,
			baseline_accuracy DOUBLE PRECISION,
			candidate_accuracy DOUBLE PRECISION,
			report TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != types.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const upsertClassification = `INSERT INTO classifications
	(id, filename, final_stage, method, reasoning, knn_prediction, knn_scores, judge_prediction, judge_confidence, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		filename=excluded.filename, final_stage=excluded.final_stage, method=excluded.method,
		reasoning=excluded.reasoning, knn_prediction=excluded.knn_prediction,
		knn_scores=excluded.knn_scores, judge_prediction=excluded.judge_prediction,
		judge_confidence=excluded.judge_confidence, created_at=excluded.created_at`

// Insert stores a record, replacing any row with the same ID. An empty ID
// is assigned a new UUID and a zero CreatedAt becomes now. It returns the
// stored ID.
func (s *Store) Insert(ctx context.Context, rec types.HistoricalRecord) (string, error) {
	return insertWith(ctx, s.db, s.rebind(upsertClassification), rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertWith(ctx context.Context, db execer, query string, rec types.HistoricalRecord) (string, error) {
	if rec.Filename == "" {
		return "", fmt.Errorf("record %q has no filename", rec.ID)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var scores sql.NullString
	if len(rec.KNNScores) > 0 {
		data, err := json.Marshal(rec.KNNScores)
		if err != nil {
			return "", fmt.Errorf("marshaling k-NN scores: %w", err)
		}
		scores = sql.NullString{String: string(data), Valid: true}
	}
	var judgeConf sql.NullFloat64
	if rec.JudgeConfidence != nil {
		judgeConf = sql.NullFloat64{Float64: types.ClampUnit(*rec.JudgeConfidence), Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		rec.ID, rec.Filename, nullStage(rec.FinalStage), rec.Method, rec.Reasoning,
		nullStage(rec.KNNPrediction), scores, nullStage(rec.JudgePrediction), judgeConf,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("inserting record %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

// SaveClassification stores a pipeline result as a historical record.
func (s *Store) SaveClassification(ctx context.Context, c types.Classification) (string, error) {
	return s.Insert(ctx, FromClassification(c))
}

// FromClassification converts a pipeline result to its stored form. The
// no-neighbor fallback is not stored as a k-NN prediction.
func FromClassification(c types.Classification) types.HistoricalRecord {
	rec := types.HistoricalRecord{
		Filename:   c.Filename,
		FinalStage: c.FinalStage.Ptr(),
		Method:     c.Method,
		Reasoning:  c.Reasoning,
	}
	if c.KNN.Stage.Valid() && !c.KNNNoEvidence {
		rec.KNNPrediction = c.KNN.Stage.Ptr()
		rec.KNNScores = c.KNNScores
	}
	if c.Judge != nil && c.Judge.Stage.Valid() {
		rec.JudgePrediction = c.Judge.Stage.Ptr()
		conf := c.Judge.Confidence
		rec.JudgeConfidence = &conf
	}
	return rec
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of rows; 0 returns all.
	Limit int
	// FilenameContains filters by substring of the filename.
	FilenameContains string
}

// All returns every stored record, oldest first.
func (s *Store) All(ctx context.Context) ([]types.HistoricalRecord, error) {
	return s.List(ctx, ListOptions{})
}

// List returns stored records, oldest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.HistoricalRecord, error) {
	query := `SELECT id, filename, final_stage, method, reasoning, knn_prediction, knn_scores,
		judge_prediction, judge_confidence, created_at FROM classifications`
	var args []any
	if opts.FilenameContains != "" {
		query += ` WHERE filename LIKE ?`
		args = append(args, "%"+opts.FilenameContains+"%")
	}
	query += ` ORDER BY created_at, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []types.HistoricalRecord
	for rows.Next() {
		var (
			rec                        types.HistoricalRecord
			final, knn, judge, scores  sql.NullString
			method, reasoning, created sql.NullString
			judgeConf                  sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Filename, &final, &method, &reasoning, &knn, &scores,
			&judge, &judgeConf, &created); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.FinalStage = scanStage(final)
		rec.Method = method.String
		rec.Reasoning = reasoning.String
		rec.KNNPrediction = scanStage(knn)
		rec.JudgePrediction = scanStage(judge)
		if judgeConf.Valid {
			v := judgeConf.Float64
			rec.JudgeConfidence = &v
		}
		if scores.Valid && scores.String != "" {
			if err := json.Unmarshal([]byte(scores.String), &rec.KNNScores); err != nil {
				return nil, fmt.Errorf("decoding k-NN scores of %s: %w", rec.ID, err)
			}
		}
		if created.Valid {
			if t, err := time.Parse(time.RFC3339Nano, created.String); err == nil {
				rec.CreatedAt = t
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM classifications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func nullStage(s *types.Stage) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

// scanStage keeps whatever stage string was stored, including Uncertain, so
// that callers decide how to treat it.
func scanStage(ns sql.NullString) *types.Stage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if st, ok := types.ParseStage(ns.String); ok {
		return &st
	}
	st := types.Stage(ns.String)
	return &st
}
