// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ensemble

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/estrus-ensemble/pkg/types"
)

// Table maps (k-NN, judge) pairs to a learned final stage. It is read-only
// after construction and safe for concurrent lookups.
type Table struct {
	entries map[types.StagePair]types.PairOverrideEntry
}

// TableEntry is the flat form of one override, as stored on disk.
type TableEntry struct {
	KNN     types.Stage `json:"knn" yaml:"knn"`
	Judge   types.Stage `json:"judge" yaml:"judge"`
	Stage   types.Stage `json:"stage" yaml:"stage"`
	Support int         `json:"support" yaml:"support"`
}

// tableFile is the YAML document layout.
type tableFile struct {
	Overrides []TableEntry `yaml:"overrides"`
}

// NewTable builds a table from entries. Stages must be cycle stages and
// support must be non-negative. A duplicate pair is an error.
func NewTable(entries []TableEntry) (*Table, error) {
	t := &Table{entries: make(map[types.StagePair]types.PairOverrideEntry, len(entries))}
	for i, e := range entries {
		if !e.KNN.Valid() || !e.Judge.Valid() || !e.Stage.Valid() {
			return nil, fmt.Errorf("override %d: invalid stage in %s+%s -> %s", i, e.KNN, e.Judge, e.Stage)
		}
		if e.Support < 0 {
			return nil, fmt.Errorf("override %d (%s+%s): negative support %d", i, e.KNN, e.Judge, e.Support)
		}
		key := types.StagePair{KNN: e.KNN, Judge: e.Judge}
		if _, dup := t.entries[key]; dup {
			return nil, fmt.Errorf("override %d: duplicate pair %s", i, key)
		}
		t.entries[key] = types.PairOverrideEntry{Stage: e.Stage, Support: e.Support}
	}
	return t, nil
}

// EmptyTable returns a table with no overrides.
func EmptyTable() *Table {
	return &Table{entries: map[types.StagePair]types.PairOverrideEntry{}}
}

// Lookup returns the override for a pair. Unseen pairs return false; there
// is no default stage. A nil table has no entries.
func (t *Table) Lookup(knn, judge types.Stage) (types.PairOverrideEntry, bool) {
	if t == nil {
		return types.PairOverrideEntry{}, false
	}
	e, ok := t.entries[types.StagePair{KNN: knn, Judge: judge}]
	return e, ok
}

// Len returns the number of overrides.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns the overrides sorted by pair in cycle order.
func (t *Table) Entries() []TableEntry {
	if t == nil {
		return nil
	}
	out := make([]TableEntry, 0, len(t.entries))
	for k, v := range t.entries {
		out = append(out, TableEntry{KNN: k.KNN, Judge: k.Judge, Stage: v.Stage, Support: v.Support})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].KNN != out[j].KNN {
			return out[i].KNN.Index() < out[j].KNN.Index()
		}
		return out[i].Judge.Index() < out[j].Judge.Index()
	})
	return out
}

// LoadTable reads a YAML override file. A missing file yields an empty table
// so the engine can run on its fixed rules alone.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return EmptyTable(), nil
		}
		return nil, fmt.Errorf("reading overrides: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing overrides %s: %w", path, err)
	}
	return NewTable(f.Overrides)
}

// WriteFile writes the table as YAML, creating parent directories.
func (t *Table) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating overrides directory: %w", err)
	}
	data, err := yaml.Marshal(tableFile{Overrides: t.Entries()})
	if err != nil {
		return fmt.Errorf("marshaling overrides: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
