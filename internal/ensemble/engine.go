// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ensemble reconciles the k-NN and judge predictions into one stage.
//
// The decision is a fixed-priority rule cascade, not a learned model: the
// first rule that applies wins, and later rules never see the input. The
// only learned part is the pair override table, which is derived offline
// (see package optimize) and read-only here.
package ensemble

import (
	"fmt"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Method tags. Tags with a %s are completed with stage or judge names.
const (
	MethodPairOverride     = "Pair override (%s)"
	MethodAgreement        = "Agreement"
	MethodDiestrusOverride = "%s Diestrus override"
	MethodEstrusGuard      = "k-NN Estrus guard"
	MethodTrustedKNN       = "k-NN %s"
	MethodFallbackKNN      = "Fallback k-NN"
	MethodKNNOnly          = "k-NN only (judge unavailable)"
	MethodJudgeOnly        = "%s only (k-NN unavailable)"
	MethodNoEvidence       = "No evidence"
	MethodWeighted         = "Weighted ensemble"
)

// Engine applies the decision cascade. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	cfg       types.EnsembleConfig
	overrides *Table
}

// NewEngine returns an engine using cfg and the given overrides. Zero config
// values fall back to the defaults; a nil table means no overrides.
func NewEngine(cfg types.EnsembleConfig, overrides *Table) *Engine {
	def := types.DefaultEnsembleConfig()
	if cfg.MinSupport <= 0 {
		cfg.MinSupport = def.MinSupport
	}
	if cfg.DiestrusGuard <= 0 {
		cfg.DiestrusGuard = def.DiestrusGuard
	}
	if cfg.JudgeName == "" {
		cfg.JudgeName = def.JudgeName
	}
	if cfg.KNNWeight <= 0 && cfg.JudgeWeight <= 0 {
		cfg.KNNWeight, cfg.JudgeWeight = def.KNNWeight, def.JudgeWeight
	}
	if overrides == nil {
		overrides = EmptyTable()
	}
	return &Engine{cfg: cfg, overrides: overrides}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() types.EnsembleConfig { return e.cfg }

// Overrides returns the engine's pair override table.
func (e *Engine) Overrides() *Table { return e.overrides }

// Decide runs the cascade:
//
//  1. a pair override with enough support;
//  2. agreement between k-NN and judge;
//  3. a confident judge Diestrus call;
//  4. k-NN Estrus unless the judge says Diestrus;
//  5. k-NN Proestrus or Metestrus;
//  6. k-NN as the fallback.
//
// judgeConf is clamped to [0,1]. If knn is not a cycle stage the decision
// degrades to the judge alone; if neither is, to Diestrus.
func (e *Engine) Decide(knn, judge types.Stage, judgeConf float64) types.EnsembleDecision {
	if !judge.Valid() {
		return e.DecideKNNOnly(knn)
	}
	if !knn.Valid() {
		return types.EnsembleDecision{
			FinalStage: judge,
			Method:     fmt.Sprintf(MethodJudgeOnly, e.cfg.JudgeName),
		}
	}
	judgeConf = types.ClampUnit(judgeConf)

	if o, ok := e.overrides.Lookup(knn, judge); ok && o.Support >= e.cfg.MinSupport {
		pair := types.StagePair{KNN: knn, Judge: judge}
		return types.EnsembleDecision{FinalStage: o.Stage, Method: fmt.Sprintf(MethodPairOverride, pair)}
	}

	if knn == judge {
		return types.EnsembleDecision{FinalStage: knn, Method: MethodAgreement}
	}

	if judge == types.Diestrus && judgeConf >= e.cfg.DiestrusGuard {
		return types.EnsembleDecision{
			FinalStage: types.Diestrus,
			Method:     fmt.Sprintf(MethodDiestrusOverride, e.cfg.JudgeName),
		}
	}

	if knn == types.Estrus && judge != types.Diestrus {
		return types.EnsembleDecision{FinalStage: types.Estrus, Method: MethodEstrusGuard}
	}

	if knn == types.Proestrus || knn == types.Metestrus {
		return types.EnsembleDecision{FinalStage: knn, Method: fmt.Sprintf(MethodTrustedKNN, knn)}
	}

	return types.EnsembleDecision{FinalStage: knn, Method: MethodFallbackKNN}
}

// DecideKNNOnly is the decision when the judge could not be consulted. Only
// the fallback rule applies.
func (e *Engine) DecideKNNOnly(knn types.Stage) types.EnsembleDecision {
	if !knn.Valid() {
		return types.EnsembleDecision{FinalStage: types.Diestrus, Method: MethodNoEvidence}
	}
	return types.EnsembleDecision{FinalStage: knn, Method: MethodKNNOnly}
}

// Decide runs the cascade with the default configuration and the given
// overrides.
func Decide(knn, judge types.Stage, judgeConf float64, overrides *Table) types.EnsembleDecision {
	return NewEngine(types.DefaultEnsembleConfig(), overrides).Decide(knn, judge, judgeConf)
}
