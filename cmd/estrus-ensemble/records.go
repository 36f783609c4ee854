// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/estrus-ensemble/internal/records"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage stored classifications (import, list, runs)",
	Long: `Records manages the history of classifications that evaluation and
optimization read. The store is SQLite by default and Postgres when
store.driver is pgx.`,
}

// --- import subcommand ---

var recordsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import historical classifications from a YAML export",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsImport,
}

func runRecordsImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.ImportYAML(context.Background(), args[0], os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d record(s) failed import", summary.Failed)
	}
	return nil
}

// --- list subcommand ---

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored classifications",
	RunE:  runRecordsList,
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	contains, _ := cmd.Flags().GetString("filename")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.List(context.Background(), records.ListOptions{Limit: limit, FilenameContains: contains})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-32s  %-10s  %-10s  %-10s  %s\n",
		"ID", "Filename", "k-NN", "Judge", "Final", "Method")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 130))
	for _, r := range recs {
		name := r.Filename
		if len(name) > 32 {
			name = name[:29] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-32s  %-10s  %-10s  %-10s  %s\n",
			r.ID, name, stageText(r.KNNPrediction), stageText(r.JudgePrediction), stageText(r.FinalStage), r.Method)
	}
	fmt.Fprintf(os.Stdout, "\n%d records\n", len(recs))
	return nil
}

func stageText(s *types.Stage) string {
	if s == nil {
		return "-"
	}
	return s.String()
}

// --- runs subcommand ---

var recordsRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved evaluation runs",
	RunE:  runRecordsRuns,
}

func runRecordsRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No saved runs.")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %s %.1f%% -> %s %.1f%%  (%d comparable)\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"),
			r.Baseline, 100*r.BaselineAccuracy, r.Candidate, 100*r.CandidateAccuracy, r.Comparable)
	}
	return nil
}

func init() {
	recordsListCmd.Flags().Int("limit", 50, "maximum number of records (0 for all)")
	recordsListCmd.Flags().String("filename", "", "only records whose filename contains this text")
	recordsListCmd.Flags().Bool("json", false, "output records as JSON")

	recordsCmd.AddCommand(recordsImportCmd)
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsRunsCmd)
	rootCmd.AddCommand(recordsCmd)
}
