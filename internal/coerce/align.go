// Package coerce shapes a raw batch to a destination schema: column
// alignment first, then per-column type coercion.
package coerce

import (
	"strings"

	"healthetl/internal/dataset"
	"healthetl/internal/schema"
)

// Align rewrites a batch so its columns exactly match the target schema, in
// target order.
//
// Steps, in order:
//  1. lowercase every column name
//  2. drop the bookkeeping columns if the extract carries them; they are
//     injected later in the pipeline, never sourced from raw data
//  3. add every target column the batch is missing: empty string for
//     character types, null for everything else
//  4. reorder to the target column list exactly
//
// Align never drops a target column and never preserves input order.
func Align(b *dataset.Batch, target schema.Target) error {
	for i, c := range b.Columns {
		b.Columns[i] = strings.ToLower(c)
	}

	b.DropColumn(schema.SurrogateKeyColumn)
	b.DropColumn(schema.LineageColumn)
	b.DropColumn(schema.GeographyColumn)

	for _, tc := range target {
		if b.ColumnIndex(tc.Name) >= 0 {
			continue
		}
		if tc.Spec.IsText() {
			b.AddColumn(tc.Name, "")
		} else {
			b.AddColumn(tc.Name, nil)
		}
	}

	return b.Select(target.Names())
}
