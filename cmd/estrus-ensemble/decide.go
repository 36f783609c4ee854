// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Apply the decision cascade to one pair of predictions",
	Long: `Decide runs the ensemble rules on a k-NN prediction and a judge
prediction with its confidence, and prints the final stage and the rule
that produced it. Without --judge the decision is k-NN only.`,
	RunE: runDecide,
}

func init() {
	decideCmd.Flags().String("knn", "", "k-NN predicted stage (required)")
	decideCmd.Flags().String("judge", "", "judge predicted stage")
	decideCmd.Flags().Float64("confidence", 0, "judge confidence in [0, 1]")
	decideCmd.Flags().Bool("json", false, "output the decision as JSON")
	decideCmd.MarkFlagRequired("knn")

	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, args []string) error {
	knnFlag, _ := cmd.Flags().GetString("knn")
	judgeFlag, _ := cmd.Flags().GetString("judge")
	conf, _ := cmd.Flags().GetFloat64("confidence")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	knn, ok := types.ParseStage(knnFlag)
	if !ok {
		return fmt.Errorf("invalid --knn stage %q: use one of %v", knnFlag, types.Stages)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}

	var d types.EnsembleDecision
	if judgeFlag == "" {
		d = eng.DecideKNNOnly(knn)
	} else {
		judge, ok := types.ParseStage(judgeFlag)
		if !ok {
			return fmt.Errorf("invalid --judge stage %q: use one of %v", judgeFlag, types.Stages)
		}
		d = eng.Decide(knn, judge, conf)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	fmt.Printf("%s via %s\n", d.FinalStage, d.Method)
	return nil
}
