package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Ensemble groups targets that run the CLI against local data.
type Ensemble mg.Namespace

func cli() string {
	return filepath.Join(binDir, binName)
}

// Optimize re-derives config/overrides.yaml from the records store.
func (Ensemble) Optimize() error {
	mg.Deps(Build)
	return sh.RunV(cli(), "optimize")
}

// Evaluate prints the accuracy report and writes data/reports/evaluation.html.
func (Ensemble) Evaluate() error {
	mg.Deps(Build)
	return sh.RunV(cli(), "evaluate", "--html", filepath.Join("data", "reports", "evaluation.html"))
}

// Classify stages every image in images/ and stores the results.
func (Ensemble) Classify() error {
	mg.Deps(Build)
	return sh.RunV(cli(), "classify", "images")
}
