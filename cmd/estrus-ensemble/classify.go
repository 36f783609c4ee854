// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/estrus-ensemble/internal/classify"
	"github.com/pdiddy/estrus-ensemble/internal/judge"
	"github.com/pdiddy/estrus-ensemble/internal/neighbors"
	"github.com/pdiddy/estrus-ensemble/internal/secrets"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image-or-dir...>",
	Short: "Stage images with the neighbor vote, the judge, and the ensemble",
	Long: `Classify sends each image to the reference match service for its
nearest labeled neighbors, asks the vision judge for its own call, and
combines both with the decision cascade. Results are saved to the records
store unless --no-save is given.

When the judge is unavailable the image is still staged from the neighbor
vote alone. A failure of the match service fails that image.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().String("neighbors-url", "", "reference match service endpoint")
	classifyCmd.Flags().Int("k", 0, "number of neighbors (default 3)")
	classifyCmd.Flags().String("judge-backend", "", "judge backend: gemini or claude (default gemini)")
	classifyCmd.Flags().String("model", "", "judge model identifier")
	classifyCmd.Flags().Bool("no-judge", false, "skip the judge and decide from the neighbor vote alone")
	classifyCmd.Flags().Bool("no-save", false, "do not persist results")
	classifyCmd.Flags().Bool("json", false, "print results as JSON")

	viper.BindPFlag("neighbors.url", classifyCmd.Flags().Lookup("neighbors-url"))
	viper.BindPFlag("neighbors.k", classifyCmd.Flags().Lookup("k"))
	viper.BindPFlag("judge.backend", classifyCmd.Flags().Lookup("judge-backend"))
	viper.BindPFlag("judge.model", classifyCmd.Flags().Lookup("model"))

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	noJudge, _ := cmd.Flags().GetBool("no-judge")
	noSave, _ := cmd.Flags().GetBool("no-save")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	finder, err := neighbors.NewClient(cfg.Neighbors)
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}

	p := &classify.Pipeline{Finder: finder, Engine: eng, Warn: os.Stderr}

	if !noJudge {
		if cfg.Judge.APIKey == "" {
			return fmt.Errorf("no API key for the %s judge: set judge.api_key or add .secrets/%s, or pass --no-judge",
				cfg.Judge.Backend, secrets.JudgeKey(cfg.Judge.Backend))
		}
		j, closeJudge, err := judge.New(ctx, cfg.Judge)
		if err != nil {
			return err
		}
		defer closeJudge()
		p.Judge = j
	}

	if !noSave {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		p.Store = store
	}

	progress := os.Stdout
	if jsonOutput {
		progress = os.Stderr
	}
	summary, err := p.ClassifyPaths(ctx, args, progress)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary.Results); err != nil {
			return err
		}
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d image(s) failed classification", summary.Failed)
	}
	return nil
}

