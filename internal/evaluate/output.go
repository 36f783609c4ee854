// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// WriteText prints a human-readable report.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Evaluation %s (%s)\n", r.RunID, r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Records: %d, comparable: %d, excluded: %d\n", r.TotalRecords, r.Comparable, r.TotalExcluded())
	for _, reason := range []string{ExcludedNoGroundTruth, ExcludedNoKNN, ExcludedNoJudge, ExcludedNoFinal} {
		if n := r.Excluded[reason]; n > 0 {
			fmt.Fprintf(w, "  %-22s %d\n", reason, n)
		}
	}

	fmt.Fprintf(w, "\nAccuracy\n")
	for _, s := range r.Strategies {
		fmt.Fprintf(w, "  %-10s %5.1f%%  (%d/%d)\n", s.Name, 100*s.Accuracy, s.Correct, s.Total)
	}

	fmt.Fprintf(w, "\nPer-stage accuracy\n")
	fmt.Fprintf(w, "  %-10s", "")
	for _, st := range types.Stages {
		fmt.Fprintf(w, " %10s", st)
	}
	fmt.Fprintln(w)
	for _, s := range r.Strategies {
		fmt.Fprintf(w, "  %-10s", s.Name)
		for _, ss := range s.PerStage {
			fmt.Fprintf(w, " %9.1f%%", 100*ss.Accuracy())
		}
		fmt.Fprintln(w)
	}

	if cand, ok := r.Strategy(r.Candidate); ok {
		fmt.Fprintf(w, "\nClassification report (%s)\n", cand.Name)
		fmt.Fprintf(w, "  %-10s %9s %9s %9s %8s\n", "", "precision", "recall", "f1", "support")
		for _, ss := range cand.PerStage {
			fmt.Fprintf(w, "  %-10s %9.2f %9.2f %9.2f %8d\n", ss.Stage, ss.Precision, ss.Recall, ss.F1, ss.Support)
		}

		fmt.Fprintf(w, "\nConfusion matrix (%s; rows truth, columns predicted)\n", cand.Name)
		fmt.Fprintf(w, "  %-10s", "")
		for _, st := range types.Stages {
			fmt.Fprintf(w, " %10s", st)
		}
		fmt.Fprintln(w)
		for i, st := range types.Stages {
			fmt.Fprintf(w, "  %-10s", st)
			for j := range types.Stages {
				fmt.Fprintf(w, " %10d", cand.Confusion[i][j])
			}
			fmt.Fprintln(w)
		}
	}

	a := r.Agreement
	fmt.Fprintf(w, "\nAgreement: %d agree (%d both right), %d disagree\n", a.Agree, a.AgreeBothRight, a.Disagree)
	fmt.Fprintf(w, "  on disagreement: k-NN right %d, judge right %d, both wrong %d\n", a.KNNRight, a.JudgeRight, a.BothWrong)

	c := r.Calibration
	fmt.Fprintf(w, "\nJudge calibration: mean confidence %.3f when correct (n=%d), %.3f when wrong (n=%d)\n",
		c.MeanWhenCorrect, c.CorrectCount, c.MeanWhenWrong, c.IncorrectCount)

	fmt.Fprintf(w, "\n%s vs %s: %d improvements, %d regressions\n", r.Candidate, r.Baseline, r.ImprovementCount, r.RegressionCount)
	for _, ch := range r.Improvements {
		fmt.Fprintf(w, "  + %s: %s -> %s (truth %s)\n", ch.Filename, ch.Baseline, ch.Candidate, ch.GroundTruth)
	}
	for _, ch := range r.Regressions {
		fmt.Fprintf(w, "  - %s: %s -> %s (truth %s)\n", ch.Filename, ch.Baseline, ch.Candidate, ch.GroundTruth)
	}

	if len(r.Methods) > 0 {
		fmt.Fprintf(w, "\nBy method (%s)\n", r.Candidate)
		for _, m := range r.Methods {
			fmt.Fprintf(w, "  %-40s %5d  %5.1f%%\n", m.Method, m.Count, 100*m.Accuracy)
		}
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteHTML renders accuracy and agreement charts as a standalone page.
func (r *Report) WriteHTML(w io.Writer) error {
	page := components.NewPage()
	page.AddCharts(r.accuracyChart(), r.perStageChart(), r.agreementChart())

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteHTMLFile renders the HTML report to path, creating parent directories.
func (r *Report) WriteHTMLFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	var buf bytes.Buffer
	if err := r.WriteHTML(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (r *Report) accuracyChart() *charts.Bar {
	x := make([]string, len(r.Strategies))
	y := make([]opts.BarData, len(r.Strategies))
	for i, s := range r.Strategies {
		x[i] = s.Name
		y[i] = opts.BarData{Value: percent(s.Accuracy)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Accuracy by strategy", Subtitle: fmt.Sprintf("comparable=%d run=%s", r.Comparable, r.RunID)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("accuracy %", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func (r *Report) perStageChart() *charts.Bar {
	x := make([]string, types.NumStages)
	for i, st := range types.Stages {
		x[i] = st.String()
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Per-stage accuracy"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x)
	for _, s := range r.Strategies {
		y := make([]opts.BarData, len(s.PerStage))
		for i, ss := range s.PerStage {
			y[i] = opts.BarData{Value: percent(ss.Accuracy())}
		}
		bar.AddSeries(s.Name, y)
	}
	return bar
}

func (r *Report) agreementChart() *charts.Bar {
	a := r.Agreement
	x := []string{"agree, right", "agree, wrong", "k-NN right", "judge right", "both wrong"}
	y := []opts.BarData{
		{Value: a.AgreeBothRight},
		{Value: a.Agree - a.AgreeBothRight},
		{Value: a.KNNRight},
		{Value: a.JudgeRight},
		{Value: a.BothWrong},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Classifier agreement"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("records", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func percent(v float64) float64 {
	return float64(int(v*1000+0.5)) / 10
}
