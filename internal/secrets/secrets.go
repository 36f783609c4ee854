// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: gemini-api-key, anthropic-api-key, neighbors-api-key.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Key file names.
const (
	GeminiAPIKey    = "gemini-api-key"
	AnthropicAPIKey = "anthropic-api-key"
	NeighborsAPIKey = "neighbors-api-key"
)

// Load reads one key per file in dir. The value is the first non-blank
// line, trimmed; empty files are skipped. A missing directory yields an empty
// map. Unreadable files and files that other users can read are reported to
// warn (nil discards) and do not abort.
func Load(dir string, warn io.Writer) (map[string]string, error) {
	if warn == nil {
		warn = io.Discard
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	loaded := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		if info, err := entry.Info(); err == nil && info.Mode().Perm()&0o077 != 0 {
			fmt.Fprintf(warn, "warning: secret %s is readable by other users (mode %04o); run chmod 600 %s\n",
				name, info.Mode().Perm(), path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(warn, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if value := firstLine(string(data)); value != "" {
			loaded[name] = value
		}
	}
	return loaded, nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if v := strings.TrimSpace(line); v != "" {
			return v
		}
	}
	return ""
}

// JudgeKey returns the key file name for a judge backend.
func JudgeKey(backend types.JudgeBackend) string {
	if backend == types.JudgeClaude {
		return AnthropicAPIKey
	}
	return GeminiAPIKey
}

// Apply fills API keys that cfg leaves empty from loaded secrets. Keys set
// by config or environment take precedence.
func Apply(cfg *types.Config, secrets map[string]string) {
	if cfg.Judge.APIKey == "" {
		cfg.Judge.APIKey = secrets[JudgeKey(cfg.Judge.Backend)]
	}
	if cfg.Neighbors.APIKey == "" {
		cfg.Neighbors.APIKey = secrets[NeighborsAPIKey]
	}
}
