// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/estrus-ensemble/internal/optimize"
	"github.com/pdiddy/estrus-ensemble/internal/retrain"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Derive the pair override table from stored history",
	Long: `Optimize groups labeled records by their (k-NN, judge) prediction pair
and picks, for each pair, the stage that maximizes correct decisions. The
result is written as the override table the engine loads.

With --schedule the table is re-derived on a cron schedule until
interrupted.`,
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().String("out", "", "write the table here (default: the configured overrides file)")
	optimizeCmd.Flags().String("tie-break", "", "tie-break policy: cycle or global (default cycle)")
	optimizeCmd.Flags().Int("min-margin", 0, "votes the best stage needs over the runner-up")
	optimizeCmd.Flags().String("schedule", "", `cron schedule for periodic retraining (e.g. "@daily")`)
	optimizeCmd.Flags().Bool("dry-run", false, "print the mapping without writing the table")

	viper.BindPFlag("optimizer.tie_break", optimizeCmd.Flags().Lookup("tie-break"))
	viper.BindPFlag("optimizer.min_margin", optimizeCmd.Flags().Lookup("min-margin"))
	viper.BindPFlag("optimizer.schedule", optimizeCmd.Flags().Lookup("schedule"))

	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	switch cfg.Optimizer.TieBreak {
	case types.TieBreakCycleOrder, types.TieBreakGlobalFrequency:
	default:
		return fmt.Errorf("unknown tie-break policy %q: use cycle or global", cfg.Optimizer.TieBreak)
	}
	if out == "" {
		out = cfg.Ensemble.OverridesFile
	}
	if dryRun {
		out = ""
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	job := &retrain.Job{
		Source: store,
		Options: optimize.Options{
			TieBreak:  cfg.Optimizer.TieBreak,
			MinMargin: cfg.Optimizer.MinMargin,
		},
		OutPath: out,
	}

	if cfg.Optimizer.Schedule != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := job.Schedule(ctx, cfg.Optimizer.Schedule, os.Stdout); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	res, err := job.Run(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	printMappings(res)
	return nil
}

func printMappings(res optimize.Result) {
	if len(res.Pairs) == 0 {
		return
	}
	fmt.Fprintf(os.Stdout, "\n%-22s  %-10s  %-9s  %s\n", "Pair (k-NN+judge)", "Best", "Correct", "Notes")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 60))
	for _, m := range res.Sorted() {
		var notes []string
		if m.Tied {
			notes = append(notes, "tied")
		}
		if m.Ambiguous {
			notes = append(notes, "ambiguous, not written")
		}
		fmt.Fprintf(os.Stdout, "%-22s  %-10s  %3d/%-5d  %s\n",
			m.Pair, m.BestStage, m.Correct, m.Total, strings.Join(notes, ", "))
	}
}
