package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"healthetl/internal/coerce"
	"healthetl/internal/dataset"
	"healthetl/internal/metrics"
	"healthetl/internal/schema"
)

// DefaultChunkSize bounds one bulk insert.
const DefaultChunkSize = 10000

// Job describes one source system feeding one destination table.
type Job struct {
	System string
	Table  string
	Target schema.Target
}

// Orchestrator runs the per-file load loop:
//
//	discover folders -> discover files -> skip processed -> load file ->
//	align -> coerce -> tag lineage + region -> allow-list filter ->
//	chunk -> bulk load
//
// Failures are isolated per file (and per batch at the load step): a corrupt
// file is logged and skipped, the run continues. Only a discovery-level
// problem stops a source system, and discovery itself degrades to empty
// results.
type Orchestrator struct {
	Discoverer *Discoverer
	Tracker    *Tracker
	Loader     *Loader
	Log        *zap.Logger

	// ChunkSize bounds rows per bulk insert; DefaultChunkSize when zero.
	ChunkSize int

	// AllowColumn/Allow implement the retained-entity filter. An empty set
	// disables filtering.
	AllowColumn string
	Allow       map[string]struct{}

	// ReadFile is a seam for tests; defaults to dataset.ReadFile.
	ReadFile func(path string) (*dataset.Batch, error)
}

// Run processes every discovered file for the job. It returns an error only
// for misconfiguration; data-level failures are logged and skipped.
func (o *Orchestrator) Run(ctx context.Context, job Job) error {
	if job.System == "" || job.Table == "" || len(job.Target) == 0 {
		return fmt.Errorf("ingest: job needs system, table, and target schema")
	}

	readFile := o.ReadFile
	if readFile == nil {
		readFile = dataset.ReadFile
	}

	processed := o.Tracker.AlreadyProcessed(ctx, job.Table)
	log := o.Log.With(zap.String("system", job.System), zap.String("table", job.Table))

	for _, folder := range o.Discoverer.Folders(job.System) {
		for _, file := range o.Discoverer.Files(folder) {
			if err := ctx.Err(); err != nil {
				return err
			}

			prefix := FilePrefix(folder, file)
			if _, ok := processed[prefix]; ok {
				log.Info("file already loaded; skipping", zap.String("file", file))
				metrics.IncCounter("files_skipped", 1, "table:"+job.Table)
				continue
			}

			uf, ok := RegionCode(job.System, folder)
			if !ok {
				uf, ok = RegionCode(job.System, file)
			}
			if !ok {
				log.Warn("region code undeterminable; skipping file",
					zap.String("folder", folder), zap.String("file", file))
				continue
			}

			if err := o.processFile(ctx, job, readFile, file, prefix, uf); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				log.Error("file failed; continuing with next file",
					zap.String("file", file), zap.Error(err))
				metrics.IncCounter("files_failed", 1, "table:"+job.Table)
			}
		}
	}

	return nil
}

func (o *Orchestrator) processFile(
	ctx context.Context,
	job Job,
	readFile func(string) (*dataset.Batch, error),
	file, prefix, uf string,
) error {
	b, err := readFile(file)
	if err != nil {
		return err
	}

	if err := coerce.Align(b, job.Target); err != nil {
		return err
	}
	if err := coerce.Coerce(b, job.Target); err != nil {
		return err
	}

	o.tagRows(b, prefix, uf)
	o.filterAllowed(b)

	if len(b.Rows) == 0 {
		o.Log.Info("no rows retained after filtering; skipping file", zap.String("file", file))
		return nil
	}

	// Coercion may have appended shadow columns the destination does not
	// carry; projecting to the target order drops them and re-enforces the
	// column-order invariant right before handoff.
	if err := b.Select(job.Target.Names()); err != nil {
		return err
	}

	size := o.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	for _, chunk := range b.Chunks(size) {
		if err := o.Loader.Load(ctx, job.Table, chunk, job.Target); err != nil {
			// The batch is dropped; retry policy lives outside this core.
			o.Log.Error("batch dropped", zap.String("file", file), zap.Error(err))
			metrics.IncCounter("batches_dropped", 1, "table:"+job.Table)
		}
	}

	return nil
}

// tagRows fills the lineage and geography columns. Row sequence numbers
// follow file order, so lineage ids are stable across re-runs.
func (o *Orchestrator) tagRows(b *dataset.Batch, prefix, uf string) {
	lineage := b.ColumnIndex(schema.LineageColumn)
	if lineage < 0 {
		b.AddColumn(schema.LineageColumn, nil)
		lineage = len(b.Columns) - 1
	}
	geo := b.ColumnIndex(schema.GeographyColumn)
	if geo < 0 {
		b.AddColumn(schema.GeographyColumn, nil)
		geo = len(b.Columns) - 1
	}

	for i, row := range b.Rows {
		row[lineage] = LineageID(prefix, i)
		row[geo] = uf
	}
}

// filterAllowed keeps only rows whose allow-list column value is in the
// retained-entity set. With no configured column or an empty set, every row
// is retained.
func (o *Orchestrator) filterAllowed(b *dataset.Batch) {
	if o.AllowColumn == "" || len(o.Allow) == 0 {
		return
	}
	ix := b.ColumnIndex(strings.ToLower(o.AllowColumn))
	if ix < 0 {
		return
	}

	b.Filter(func(row []any) bool {
		s, ok := row[ix].(string)
		if !ok {
			return false
		}
		_, keep := o.Allow[strings.TrimSpace(s)]
		return keep
	})
}

// LoadAllowlist reads a retained-entity list, one identifier per line.
// Blank lines and "#" comments are ignored.
func LoadAllowlist(data string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out[line] = struct{}{}
	}
	return out
}
