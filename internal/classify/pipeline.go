// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify runs one image through both classifiers and the ensemble.
//
// The neighbor lookup is required: a service error fails the image. An
// empty neighbor list falls back to the k-NN no-evidence prediction. The
// judge is optional: when it is missing or fails, the decision degrades to
// k-NN only and the image still succeeds.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/estrus-ensemble/internal/ensemble"
	"github.com/pdiddy/estrus-ensemble/internal/judge"
	"github.com/pdiddy/estrus-ensemble/internal/knn"
	"github.com/pdiddy/estrus-ensemble/internal/neighbors"
	"github.com/pdiddy/estrus-ensemble/internal/reasoning"
	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Saver persists a classification.
type Saver interface {
	SaveClassification(ctx context.Context, c types.Classification) (string, error)
}

// Pipeline holds the collaborators for classification.
type Pipeline struct {
	Finder neighbors.Finder
	// Judge may be nil, in which case every decision is k-NN only.
	Judge  judge.Judge
	Engine *ensemble.Engine
	// Store may be nil, in which case results are not persisted.
	Store Saver
	// Warn receives degraded-path messages; nil discards them.
	Warn io.Writer
}

// Classify stages one image.
func (p *Pipeline) Classify(ctx context.Context, filename string, image []byte) (types.Classification, error) {
	if p.Finder == nil || p.Engine == nil {
		return types.Classification{}, fmt.Errorf("pipeline is missing a neighbor finder or engine")
	}

	nbs, err := p.Finder.Find(ctx, image)
	if err != nil {
		return types.Classification{}, fmt.Errorf("finding neighbors for %s: %w", filename, err)
	}
	kres := knn.Predict(nbs)

	judgeName := p.Engine.Config().JudgeName
	var (
		verdict  *judge.Verdict
		decision types.EnsembleDecision
	)
	if p.Judge != nil {
		judgeName = p.Judge.Name()
		v, err := p.Judge.Judge(ctx, judge.Image{Data: image, MIMEType: mimeType(filename, image)})
		switch {
		case err == nil && v.Stage.Valid():
			verdict = &v
		case err == nil:
			p.warnf("warning: %s: %s returned invalid stage %q\n", filename, judgeName, v.Stage)
		case errors.Is(err, judge.ErrUncertain):
			p.warnf("warning: %s: %s declined to stage the image\n", filename, judgeName)
		default:
			p.warnf("warning: %s: %s unavailable: %v\n", filename, judgeName, err)
		}
	}

	if verdict != nil {
		decision = p.Engine.Decide(kres.Prediction.Stage, verdict.Stage, verdict.Confidence)
	} else {
		decision = p.Engine.DecideKNNOnly(kres.Prediction.Stage)
	}

	c := types.Classification{
		Filename:        filename,
		FinalStage:      decision.FinalStage,
		Method:          decision.Method,
		KNN:             kres.Prediction,
		KNNScores:       kres.Scores,
		KNNNoEvidence:   kres.NoEvidence,
		JudgeName:       judgeName,
		NeighborSummary: knn.Summary(nbs),
	}
	in := reasoning.Inputs{
		KNN:       kres.Prediction,
		KNNScores: kres.Scores,
		Neighbors: kres.Neighbors,
		JudgeName: judgeName,
		Decision:  decision,
	}
	if verdict != nil {
		pred := verdict.Prediction()
		c.Judge = &pred
		c.JudgeFeatures = verdict.Features
		c.JudgeRationale = verdict.Rationale
		in.Judge = &pred
	}
	c.Confidence = finalConfidence(c)
	c.Reasoning = reasoning.Format(in)
	if kres.NoEvidence {
		c.Reasoning = kres.Reasoning + " " + c.Reasoning
	}
	return c, nil
}

// finalConfidence reports the judge's confidence when the final stage came
// from the judge alone and the k-NN vote share otherwise.
func finalConfidence(c types.Classification) float64 {
	if c.Judge != nil && c.FinalStage == c.Judge.Stage && c.FinalStage != c.KNN.Stage {
		return c.Judge.Confidence
	}
	return c.KNNScores[c.FinalStage]
}

func (p *Pipeline) warnf(format string, args ...any) {
	if p.Warn != nil {
		fmt.Fprintf(p.Warn, format, args...)
	}
}

// imageExts lists the file extensions treated as images.
var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func mimeType(filename string, data []byte) string {
	if m, ok := imageExts[strings.ToLower(filepath.Ext(filename))]; ok {
		return m
	}
	return http.DetectContentType(data)
}

// Summary holds counts from a batch run.
type Summary struct {
	Classified int
	// Degraded counts images decided without the judge.
	Degraded int
	Failed   int
	Results  []types.Classification
}

// Total returns the number of images processed.
func (s Summary) Total() int {
	return s.Classified + s.Failed
}

// HasFailures reports whether any image failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// ClassifyPaths classifies image files and every image inside the given
// directories, persisting each result when a store is set. Per-image
// failures are reported to w and counted.
func (p *Pipeline) ClassifyPaths(ctx context.Context, paths []string, w io.Writer) (Summary, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, path := range files {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		name := filepath.Base(path)
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		c, err := p.Classify(ctx, name, data)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		if p.Store != nil {
			if _, err := p.Store.SaveClassification(ctx, c); err != nil {
				fmt.Fprintf(w, "failed  %s: saving: %v\n", name, err)
				summary.Failed++
				continue
			}
		}

		if c.Judge == nil {
			summary.Degraded++
		}
		summary.Classified++
		summary.Results = append(summary.Results, c)
		fmt.Fprintf(w, "classified %s: %s (%.2f) via %s\n", name, c.FinalStage, c.Confidence, c.Method)
	}

	fmt.Fprintf(w, "\nclassified: %d, degraded: %d, failed: %d\n", summary.Classified, summary.Degraded, summary.Failed)
	return summary, nil
}

// ClassifyDir classifies every image directly inside dir.
func (p *Pipeline) ClassifyDir(ctx context.Context, dir string, w io.Writer) (Summary, error) {
	return p.ClassifyPaths(ctx, []string{dir}, w)
}

// expandPaths lists image files, expanding directories one level deep and
// sorting their contents by name.
func expandPaths(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", path, err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, ok := imageExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(path, n))
		}
	}
	return out, nil
}
