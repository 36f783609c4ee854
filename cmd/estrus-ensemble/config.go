// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/estrus-ensemble/internal/ensemble"
	"github.com/pdiddy/estrus-ensemble/internal/records"
	"github.com/pdiddy/estrus-ensemble/internal/secrets"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

const (
	defaultOverridesFile = "config/overrides.yaml"
	defaultDataDir       = "data"
	defaultTimeout       = 60 * time.Second
	defaultUserAgent     = "estrus-ensemble/0.1"
)

// setDefaults registers every config key so that environment variables
// reach viper.Unmarshal.
func setDefaults() {
	e := types.DefaultEnsembleConfig()
	viper.SetDefault("ensemble.min_support", e.MinSupport)
	viper.SetDefault("ensemble.diestrus_guard", e.DiestrusGuard)
	viper.SetDefault("ensemble.judge_name", e.JudgeName)
	viper.SetDefault("ensemble.knn_weight", e.KNNWeight)
	viper.SetDefault("ensemble.judge_weight", e.JudgeWeight)
	viper.SetDefault("ensemble.overrides_file", defaultOverridesFile)

	viper.SetDefault("store.driver", string(types.DriverSQLite))
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("store.data_dir", defaultDataDir)

	viper.SetDefault("judge.backend", string(types.JudgeGemini))
	viper.SetDefault("judge.model", "")
	viper.SetDefault("judge.api_key", "")
	viper.SetDefault("judge.max_retries", 3)

	viper.SetDefault("neighbors.url", "")
	viper.SetDefault("neighbors.api_key", "")
	viper.SetDefault("neighbors.k", 3)
	viper.SetDefault("neighbors.max_retries", 5)
	viper.SetDefault("neighbors.timeout", defaultTimeout)
	viper.SetDefault("neighbors.user_agent", defaultUserAgent)

	viper.SetDefault("optimizer.tie_break", string(types.TieBreakCycleOrder))
	viper.SetDefault("optimizer.min_margin", 0)
	viper.SetDefault("optimizer.schedule", "")

	viper.SetDefault("evaluation.baseline", "old")
	viper.SetDefault("evaluation.candidate", "new")
	viper.SetDefault("evaluation.max_changes", 20)
}

// loadConfig decodes the merged flag, env, and file settings and fills
// API keys from .secrets/.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}

// newEngine builds the decision engine with the configured override table.
func newEngine(cfg types.Config) (*ensemble.Engine, error) {
	tbl, err := ensemble.LoadTable(cfg.Ensemble.OverridesFile)
	if err != nil {
		return nil, err
	}
	return ensemble.NewEngine(cfg.Ensemble, tbl), nil
}

func openStore(cfg types.Config) (*records.Store, error) {
	store, err := records.NewStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening records store: %w", err)
	}
	return store, nil
}
