package schema

import (
	"encoding/json"
	"fmt"
	"io"
)

// columnJSON is the wire form of one column in the schema artifact.
type columnJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Encode writes the schema map as its JSON artifact: table name -> ordered
// array of {"name", "type"} objects. Columns are emitted in the canonical
// alphabetical order so the artifact is byte-stable across runs.
func (m Map) Encode(w io.Writer) error {
	out := make(map[string][]columnJSON, len(m))
	for table := range m {
		cols := m.Columns(table)
		arr := make([]columnJSON, 0, len(cols))
		for _, c := range cols {
			arr = append(arr, columnJSON{Name: c, Type: m[table][c]})
		}
		out[table] = arr
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Target converts one table's entry into an ordered Target, columns in the
// canonical alphabetical order. Returns nil for an unknown table.
func (m Map) Target(table string) Target {
	cols := m.Columns(table)
	if len(cols) == 0 {
		return nil
	}
	out := make(Target, 0, len(cols))
	for _, c := range cols {
		out = append(out, Column{Name: c, Spec: ParseTypeSpec(m[table][c])})
	}
	return out
}

// LoadTargets reads the multi-table schema artifact written by Encode.
func LoadTargets(r io.Reader) (map[string]Target, error) {
	var raw map[string][]columnJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode schema artifact: %w", err)
	}

	out := make(map[string]Target, len(raw))
	for table, cols := range raw {
		t := make(Target, 0, len(cols))
		for i, c := range cols {
			if c.Name == "" {
				return nil, fmt.Errorf("table %s entry %d: empty column name", table, i)
			}
			t = append(t, Column{Name: c.Name, Spec: ParseTypeSpec(c.Type)})
		}
		out[table] = t
	}
	return out, nil
}
