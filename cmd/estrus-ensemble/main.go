// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the estrus-ensemble CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/estrus-ensemble/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the estrus-ensemble CLI.
var rootCmd = &cobra.Command{
	Use:   "estrus-ensemble",
	Short: "Stage mouse estrous cycle images with a k-NN and vision judge ensemble",
	Long: `estrus-ensemble combines a nearest-neighbor vote over labeled reference
images with a vision language model's judgment, and decides the cycle stage
with a fixed rule cascade plus a learned pair override table.

The override table is derived from stored history (optimize), checked
against filename ground truth (evaluate), and applied when staging new
images (classify).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/", os.Stderr)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./estrus-ensemble.yaml or ~/.config/estrus-ensemble/estrus-ensemble.yaml)")
	rootCmd.PersistentFlags().String("overrides", "", "pair override table (default config/overrides.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for local data (default data)")

	viper.BindPFlag("ensemble.overrides_file", rootCmd.PersistentFlags().Lookup("overrides"))
	viper.BindPFlag("store.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("estrus-ensemble")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "estrus-ensemble"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("ESTRUS_ENSEMBLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
