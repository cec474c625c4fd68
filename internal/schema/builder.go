package schema

import (
	"fmt"
	"sort"
)

// Bookkeeping columns injected into every inferred table. They are never
// sourced from raw data; the pipeline fills the lineage and geography
// columns and the store generates the surrogate key.
const (
	SurrogateKeyColumn = "id"
	LineageColumn      = "id_log"
	GeographyColumn    = "uf"
)

const (
	surrogateKeyType = "serial"
	lineageType      = "varchar(255)"
	geographyType    = "char(2)"
)

// Map is the inference output: normalized table name -> normalized column
// name -> type string. Within a table, every source column appears once next
// to exactly the three bookkeeping columns.
//
// Go maps are unordered; Columns provides the canonical alphabetical order,
// and the JSON artifact is sorted by key when encoded.
type Map map[string]map[string]string

// Columns returns a table's column names in ascending alphabetical order.
func (m Map) Columns(table string) []string {
	cols := make([]string, 0, len(m[table]))
	for c := range m[table] {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Build runs classification over a profile feed and produces the schema map.
//
// Per table: normalize the table name, classify every column under its
// normalized name, then inject the bookkeeping columns, overwriting any
// same-named inferred entry. Profiles are validated before classification;
// a malformed profile fails the build with its table/column named.
func Build(feed Feed) (Map, error) {
	out := make(Map, len(feed))

	for table, cols := range feed {
		t := Normalize(table)
		entry := make(map[string]string, len(cols)+3)

		for col, p := range cols {
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("profile %s.%s: %w", table, col, err)
			}
			entry[Normalize(col)] = Classify(p).Type
		}

		entry[SurrogateKeyColumn] = surrogateKeyType
		entry[LineageColumn] = lineageType
		entry[GeographyColumn] = geographyType

		out[t] = entry
	}

	return out, nil
}
