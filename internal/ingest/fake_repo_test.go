package ingest

import (
	"context"
	"sync"
)

// fakeRepo records bulk loads and serves a canned prefix set.
type fakeRepo struct {
	mu sync.Mutex

	prefixes    []string
	prefixErr   error
	copyErr     error
	copyErrOnce bool

	loads []fakeLoad
}

type fakeLoad struct {
	table   string
	columns []string
	rows    [][]any
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.copyErr != nil {
		err := f.copyErr
		if f.copyErrOnce {
			f.copyErr = nil
		}
		return 0, err
	}

	cp := make([][]any, len(rows))
	for i, r := range rows {
		cp[i] = append([]any(nil), r...)
	}
	f.loads = append(f.loads, fakeLoad{
		table:   table,
		columns: append([]string(nil), columns...),
		rows:    cp,
	})
	return int64(len(rows)), nil
}

func (f *fakeRepo) DistinctLineagePrefixes(ctx context.Context, table, column string) ([]string, error) {
	if f.prefixErr != nil {
		return nil, f.prefixErr
	}
	return f.prefixes, nil
}

func (f *fakeRepo) allRows() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out [][]any
	for _, l := range f.loads {
		out = append(out, l.rows...)
	}
	return out
}
