// Package dataset holds the in-memory row/column batch that flows through
// the ingestion pipeline, plus the reader that fills it from columnar source
// files.
package dataset

import "fmt"

// Batch is a bounded set of rows with a fixed column order. Cells are typed
// loosely: raw values arrive as string, nulls as nil, and coercion rewrites
// cells in place (time.Time, int64, float64, bool).
type Batch struct {
	Columns []string
	Rows    [][]any
}

// ColumnIndex returns the position of a column, or -1 when absent.
func (b *Batch) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddColumn appends a new column filled with the given value for every row.
func (b *Batch) AddColumn(name string, fill any) {
	b.Columns = append(b.Columns, name)
	for i := range b.Rows {
		b.Rows[i] = append(b.Rows[i], fill)
	}
}

// DropColumn removes a column if present; absent columns are a no-op.
func (b *Batch) DropColumn(name string) {
	ix := b.ColumnIndex(name)
	if ix < 0 {
		return
	}
	b.Columns = append(b.Columns[:ix], b.Columns[ix+1:]...)
	for i, r := range b.Rows {
		b.Rows[i] = append(r[:ix], r[ix+1:]...)
	}
}

// Select reorders (and projects) the batch to exactly the given column order.
// Every requested column must already exist.
func (b *Batch) Select(order []string) error {
	ix := make([]int, len(order))
	for i, name := range order {
		j := b.ColumnIndex(name)
		if j < 0 {
			return fmt.Errorf("select: column %q not in batch", name)
		}
		ix[i] = j
	}

	for r, row := range b.Rows {
		out := make([]any, len(order))
		for i, j := range ix {
			out[i] = row[j]
		}
		b.Rows[r] = out
	}
	b.Columns = append([]string(nil), order...)
	return nil
}

// Filter keeps only rows for which keep returns true.
func (b *Batch) Filter(keep func(row []any) bool) {
	out := b.Rows[:0]
	for _, r := range b.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	b.Rows = out
}

// Chunks splits the rows into consecutive batches of at most size rows,
// sharing the column slice. A non-positive size yields a single chunk.
func (b *Batch) Chunks(size int) []*Batch {
	if size <= 0 || len(b.Rows) <= size {
		return []*Batch{b}
	}
	out := make([]*Batch, 0, (len(b.Rows)+size-1)/size)
	for start := 0; start < len(b.Rows); start += size {
		end := start + size
		if end > len(b.Rows) {
			end = len(b.Rows)
		}
		out = append(out, &Batch{Columns: b.Columns, Rows: b.Rows[start:end]})
	}
	return out
}
