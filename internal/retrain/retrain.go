// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrain re-derives the pair override table from stored history,
// once or on a cron schedule.
package retrain

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pdiddy/estrus-ensemble/internal/evaluate"
	"github.com/pdiddy/estrus-ensemble/internal/optimize"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Source supplies stored classifications.
type Source interface {
	All(ctx context.Context) ([]types.HistoricalRecord, error)
}

// Job derives an override table and writes it to OutPath.
type Job struct {
	Source  Source
	Options optimize.Options
	OutPath string
}

// Run fetches history, optimizes every observed pair and writes the table.
// It returns the optimizer result for display.
func (j *Job) Run(ctx context.Context, w io.Writer) (optimize.Result, error) {
	history, err := j.Source.All(ctx)
	if err != nil {
		return optimize.Result{}, fmt.Errorf("fetching records: %w", err)
	}

	records := evaluate.BuildRecords(history)
	dataset := optimize.FromRecords(records)
	fmt.Fprintf(w, "records: %d, labeled with both predictions: %d\n", len(records), len(dataset))

	res := optimize.Optimize(dataset, j.Options)
	tbl, err := res.Table()
	if err != nil {
		return res, fmt.Errorf("building override table: %w", err)
	}

	ambiguous := 0
	for _, m := range res.Pairs {
		if m.Ambiguous {
			ambiguous++
		}
	}
	fmt.Fprintf(w, "pairs: %d (ambiguous %d), oracle accuracy: %.1f%% (%d/%d)\n",
		len(res.Pairs), ambiguous, 100*res.OracleAccuracy(), res.OracleCorrect(), res.DatasetSize)

	if j.OutPath != "" {
		if err := tbl.WriteFile(j.OutPath); err != nil {
			return res, fmt.Errorf("writing overrides: %w", err)
		}
		fmt.Fprintf(w, "wrote %d overrides to %s\n", tbl.Len(), j.OutPath)
	}
	return res, nil
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a 5-field cron expression or a descriptor such as
// "@daily" or "@every 6h".
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Schedule runs the job on spec until ctx is cancelled, then waits for a
// running job to finish. Run errors are reported to w and do not stop the
// schedule. Runs never overlap.
func (j *Job) Schedule(ctx context.Context, spec string, w io.Writer) error {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := j.Run(ctx, w); err != nil {
			fmt.Fprintf(w, "retrain failed: %v\n", err)
		}
	}))

	fmt.Fprintf(w, "retrain scheduled (%s), first run at %s\n", spec, sched.Next(time.Now()).Format("Mon Jan 2 15:04"))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
