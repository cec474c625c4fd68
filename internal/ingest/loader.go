package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"healthetl/internal/dataset"
	"healthetl/internal/metrics"
	"healthetl/internal/schema"
	"healthetl/internal/storage"
)

// LoadError reports a failed bulk insert with enough context to diagnose a
// schema drift (missing/extra columns) from the log line alone.
type LoadError struct {
	Table string
	Rows  int
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("bulk load into %s (%d rows): %v", e.Table, e.Rows, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader streams coerced batches into the destination store.
type Loader struct {
	Repo storage.Repository
	Log  *zap.Logger
}

// Load bulk-inserts one batch. Before the insert it re-validates the column
// list against the target schema and truncates fixed-width text values to
// their declared maximum length. Null text cells are serialized as empty
// strings; all other nulls pass through as NULL. There is no automatic
// retry; the caller decides what a dropped batch means.
func (l *Loader) Load(ctx context.Context, table string, b *dataset.Batch, target schema.Target) error {
	if diag := columnDiagnostic(b.Columns, target.Names()); diag != "" {
		return &LoadError{
			Table: table,
			Rows:  len(b.Rows),
			Err:   fmt.Errorf("batch columns do not match target: %s", diag),
		}
	}

	rows := serializeRows(b, target)

	n, err := l.Repo.CopyFrom(ctx, table, b.Columns, rows)
	if err != nil {
		return &LoadError{Table: table, Rows: len(rows), Err: err}
	}

	l.Log.Debug("batch loaded", zap.String("table", table), zap.Int64("rows", n))
	metrics.IncCounter("rows_loaded", float64(n), "table:"+table)
	return nil
}

// serializeRows produces the rows handed to the bulk protocol: fixed-width
// text truncated, null text cells as "".
func serializeRows(b *dataset.Batch, target schema.Target) [][]any {
	out := make([][]any, len(b.Rows))
	for r, row := range b.Rows {
		vals := make([]any, len(row))
		copy(vals, row)
		out[r] = vals
	}

	for i, tc := range target {
		if !tc.Spec.IsText() {
			continue
		}
		limit := 0
		if tc.Spec.FixedWidth() {
			limit = tc.Spec.Length
		}
		for _, row := range out {
			s, ok := row[i].(string)
			if !ok {
				if row[i] == nil {
					row[i] = ""
				}
				continue
			}
			if limit > 0 {
				row[i] = truncateRunes(s, limit)
			}
		}
	}
	return out
}

// truncateRunes cuts s to at most n characters, never splitting a UTF-8
// sequence. Declared widths are character counts, not byte counts.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// columnDiagnostic returns "" when the column lists match exactly, otherwise
// a short description of what is missing or extra.
func columnDiagnostic(have, want []string) string {
	if len(have) == len(want) {
		same := true
		for i := range have {
			if have[i] != want[i] {
				same = false
				break
			}
		}
		if same {
			return ""
		}
	}

	haveSet := make(map[string]struct{}, len(have))
	for _, c := range have {
		haveSet[c] = struct{}{}
	}
	wantSet := make(map[string]struct{}, len(want))
	for _, c := range want {
		wantSet[c] = struct{}{}
	}

	var missing, extra []string
	for _, c := range want {
		if _, ok := haveSet[c]; !ok {
			missing = append(missing, c)
		}
	}
	for _, c := range have {
		if _, ok := wantSet[c]; !ok {
			extra = append(extra, c)
		}
	}

	switch {
	case len(missing) == 0 && len(extra) == 0:
		return "same columns, different order"
	case len(extra) == 0:
		return "missing [" + strings.Join(missing, " ") + "]"
	case len(missing) == 0:
		return "extra [" + strings.Join(extra, " ") + "]"
	default:
		return "missing [" + strings.Join(missing, " ") + "], extra [" + strings.Join(extra, " ") + "]"
	}
}
