// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package groundtruth infers a cycle stage from an image filename.
//
// Ground truth is never authoritative: it depends on files following the
// lab's naming convention ("227A_10_11_METESTRUS.jpg"). A filename without a
// stage token is unlabeled, which is an expected outcome and not an error.
package groundtruth

import (
	"path/filepath"
	"strings"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// stageToken pairs an uppercase substring with the stage it denotes.
type stageToken struct {
	token string
	stage types.Stage
}

// fullTokens is tested in order. Every token that contains "ESTRUS" as a
// substring comes before the bare ESTRUS entry.
var fullTokens = []stageToken{
	{"PROESTTRUS", types.Proestrus},
	{"PROESTRUS", types.Proestrus},
	{"METESTRUS", types.Metestrus},
	{"DIESTRUS", types.Diestrus},
}

// longerForms contain "ESTRUS" and must be absent for a bare match.
var longerForms = []string{"PROESTRUS", "PROESTTRUS", "METESTRUS", "DIESTRUS"}

// abbreviations are matched only between delimiters.
var abbreviations = []stageToken{
	{"PRO", types.Proestrus},
	{"EST", types.Estrus},
	{"MET", types.Metestrus},
	{"DIE", types.Diestrus},
}

const delimiters = "_-."

// Extract returns the stage named in filename. Only the base name is
// inspected, so labels in directory names are ignored.
func Extract(filename string) (types.Stage, bool) {
	name := strings.ToUpper(filepath.Base(filename))
	if name == "." || name == string(filepath.Separator) {
		return "", false
	}

	for _, t := range fullTokens {
		if strings.Contains(name, t.token) {
			return t.stage, true
		}
	}
	if strings.Contains(name, "ESTRUS") && !containsAny(name, longerForms) {
		return types.Estrus, true
	}

	for _, t := range abbreviations {
		if containsDelimited(name, t.token) {
			return t.stage, true
		}
	}
	return "", false
}

// Ptr is Extract returning nil for unlabeled filenames.
func Ptr(filename string) *types.Stage {
	st, ok := Extract(filename)
	if !ok {
		return nil
	}
	return &st
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// containsDelimited reports whether token occurs in s with a delimiter
// immediately before and after it, e.g. "_MET_", "-EST.", ".DIE_".
func containsDelimited(s, token string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], token)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(token)
		if start > 0 && end < len(s) &&
			strings.IndexByte(delimiters, s[start-1]) >= 0 &&
			strings.IndexByte(delimiters, s[end]) >= 0 {
			return true
		}
		i = start + 1
	}
}
