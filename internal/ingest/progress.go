package ingest

import (
	"context"

	"go.uber.org/zap"

	"healthetl/internal/schema"
	"healthetl/internal/storage"
)

// Tracker answers "which source files are already in this table?" from the
// lineage column of the destination store.
type Tracker struct {
	Repo storage.Repository
	Log  *zap.Logger
}

// AlreadyProcessed returns the set of lineage prefixes recorded in the
// table. Progress tracking is best-effort: a storage failure degrades to
// "assume nothing processed yet" with an error-level log, so a tracking
// outage disables resumability for the run instead of blocking ingestion.
func (t *Tracker) AlreadyProcessed(ctx context.Context, table string) map[string]struct{} {
	out := map[string]struct{}{}

	prefixes, err := t.Repo.DistinctLineagePrefixes(ctx, table, schema.LineageColumn)
	if err != nil {
		t.Log.Error("progress check failed; proceeding as if nothing was processed",
			zap.String("table", table), zap.Error(err))
		return out
	}

	for _, p := range prefixes {
		out[p] = struct{}{}
	}
	return out
}
