// Package postgres implements storage.Repository on top of pgx.
//
// Bulk loading uses the COPY protocol via pgx CopyFrom, which streams the
// whole batch in one operation instead of issuing per-row INSERTs.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthetl/internal/storage"
)

type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed repository.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// CopyFrom streams a batch into table via COPY.
func (r *Repo) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return r.pool.CopyFrom(ctx, tableIdent(table), columns, pgx.CopyFromRows(rows))
}

// DistinctLineagePrefixes strips the "_<row>" suffix server-side; the result
// set is one row per already-loaded source file, not per loaded row.
func (r *Repo) DistinctLineagePrefixes(ctx context.Context, table, column string) ([]string, error) {
	sql := distinctPrefixSQL(table, column)

	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// distinctPrefixSQL is split out so the statement shape is unit-testable
// without a database.
func distinctPrefixSQL(table, column string) string {
	return fmt.Sprintf(
		"SELECT DISTINCT regexp_replace(%s, '_[0-9]+$', '') FROM %s",
		pgIdent(column), quoteTable(table),
	)
}

// pgIdent returns a double-quoted Postgres identifier.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteTable quotes a possibly schema-qualified table name part by part.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = pgIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// tableIdent builds the pgx identifier for a possibly schema-qualified name.
func tableIdent(name string) pgx.Identifier {
	parts := strings.Split(name, ".")
	out := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
