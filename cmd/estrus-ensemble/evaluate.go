// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/estrus-ensemble/internal/evaluate"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score ensemble strategies against filename ground truth",
	Long: `Evaluate replays every stored classification through each strategy
(stored decision, current cascade, k-NN alone, judge alone, weighted) and
reports accuracy, per-stage precision and recall, confusion matrices,
classifier agreement, confidence calibration, and which images the
candidate strategy fixes or breaks relative to the baseline.

Only records with ground truth, both classifier predictions, and a stored
final decision are compared.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().String("baseline", "", "baseline strategy (default old)")
	evaluateCmd.Flags().String("candidate", "", "candidate strategy (default new)")
	evaluateCmd.Flags().Int("max-changes", 0, "maximum improvements and regressions listed (default 20)")
	evaluateCmd.Flags().Bool("json", false, "output the report as JSON")
	evaluateCmd.Flags().Bool("yaml", false, "output the report as YAML")
	evaluateCmd.Flags().String("html", "", "also write an HTML report with charts to this path")
	evaluateCmd.Flags().Bool("save", false, "save the report as an evaluation run")
	evaluateCmd.Flags().String("run", "", "show a saved run instead of evaluating")

	viper.BindPFlag("evaluation.baseline", evaluateCmd.Flags().Lookup("baseline"))
	viper.BindPFlag("evaluation.candidate", evaluateCmd.Flags().Lookup("candidate"))
	viper.BindPFlag("evaluation.max_changes", evaluateCmd.Flags().Lookup("max-changes"))

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	yamlOutput, _ := cmd.Flags().GetBool("yaml")
	htmlPath, _ := cmd.Flags().GetString("html")
	save, _ := cmd.Flags().GetBool("save")
	runID, _ := cmd.Flags().GetString("run")
	if jsonOutput && yamlOutput {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	var rep *evaluate.Report
	if runID != "" {
		rep, err = store.LoadRun(ctx, runID)
		if err != nil {
			return err
		}
	} else {
		eng, err := newEngine(cfg)
		if err != nil {
			return err
		}
		history, err := store.All(ctx)
		if err != nil {
			return fmt.Errorf("fetching records: %w", err)
		}
		rep, err = evaluate.Evaluate(evaluate.BuildRecords(history), evaluate.DefaultStrategies(eng), evaluate.Options{
			Baseline:   cfg.Evaluation.Baseline,
			Candidate:  cfg.Evaluation.Candidate,
			MaxChanges: cfg.Evaluation.MaxChanges,
		})
		if err != nil {
			return err
		}
	}

	switch {
	case jsonOutput:
		err = rep.WriteJSON(os.Stdout)
	case yamlOutput:
		err = rep.WriteYAML(os.Stdout)
	default:
		rep.WriteText(os.Stdout)
	}
	if err != nil {
		return err
	}

	if htmlPath != "" {
		if err := rep.WriteHTMLFile(htmlPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote HTML report to %s\n", htmlPath)
	}
	if save && runID == "" {
		id, err := store.SaveRun(ctx, rep)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved run %s\n", id)
	}
	return nil
}
