package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Column is one entry of a destination table schema.
type Column struct {
	Name string
	Spec TypeSpec
}

// Target is the ordered destination schema for one table. Order is fixed at
// deploy time and drives both alignment and coercion.
type Target []Column

// Names returns the column names in target order.
func (t Target) Names() []string {
	out := make([]string, len(t))
	for i, c := range t {
		out[i] = c.Name
	}
	return out
}

// Lookup returns the spec for a column name, if present.
func (t Target) Lookup(name string) (TypeSpec, bool) {
	for _, c := range t {
		if c.Name == name {
			return c.Spec, true
		}
	}
	return TypeSpec{}, false
}

// WithoutSurrogateKey returns the target minus the store-generated
// surrogate key column. Load paths must use this form: the pipeline never
// sources that column, and streaming a value into it breaks the bulk
// insert.
func (t Target) WithoutSurrogateKey() Target {
	out := make(Target, 0, len(t))
	for _, c := range t {
		if c.Name == SurrogateKeyColumn {
			continue
		}
		out = append(out, c)
	}
	return out
}

// LoadTarget reads a target schema from its JSON artifact: an ordered array
// of {"name": ..., "type": ...} objects. Names are lowercased; type strings
// are parsed once here.
func LoadTarget(r io.Reader) (Target, error) {
	var raw []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode target schema: %w", err)
	}

	out := make(Target, 0, len(raw))
	for i, c := range raw {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			return nil, fmt.Errorf("target schema entry %d: empty column name", i)
		}
		out = append(out, Column{Name: name, Spec: ParseTypeSpec(c.Type)})
	}
	return out, nil
}
