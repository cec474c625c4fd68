package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"healthetl/internal/dataset"
	"healthetl/internal/schema"
)

func orchTarget() schema.Target {
	return schema.Target{
		{Name: "cnes", Spec: schema.ParseTypeSpec("char(7)")},
		{Name: "dt_inter", Spec: schema.ParseTypeSpec("date")},
		{Name: "id_log", Spec: schema.ParseTypeSpec("varchar(255)")},
		{Name: "uf", Spec: schema.ParseTypeSpec("char(2)")},
	}
}

func writeSource(t *testing.T, base, folder, file, content string) string {
	t.Helper()
	dir := filepath.Join(base, "RD", folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func newOrchestrator(base string, repo *fakeRepo) *Orchestrator {
	log := zap.NewNop()
	return &Orchestrator{
		Discoverer: &Discoverer{Base: base, Log: log},
		Tracker:    &Tracker{Repo: repo, Log: log},
		Loader:     &Loader{Repo: repo, Log: log},
		Log:        log,
	}
}

func TestRunEndToEnd(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "RDAC1901", "RDAC1901.csv",
		"CNES,DT_INTER\n"+
			"1234567,20230131\n"+
			"7654321,20231302\n")

	repo := &fakeRepo{}
	o := newOrchestrator(base, repo)

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := repo.allRows()
	if len(rows) != 2 {
		t.Fatalf("rows=%d: %v", len(rows), rows)
	}

	// column order follows the target schema
	if !reflect.DeepEqual(repo.loads[0].columns, []string{"cnes", "dt_inter", "id_log", "uf"}) {
		t.Fatalf("columns=%v", repo.loads[0].columns)
	}

	if rows[0][0] != "1234567" {
		t.Fatalf("cnes=%v", rows[0][0])
	}
	d, ok := rows[0][1].(time.Time)
	if !ok || !d.Equal(time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("dt_inter=%v", rows[0][1])
	}

	// lineage ids embed folder, file, and 0-based row sequence
	if rows[0][2] != "RDAC1901_RDAC1901_0" || rows[1][2] != "RDAC1901_RDAC1901_1" {
		t.Fatalf("lineage=%v, %v", rows[0][2], rows[1][2])
	}
	if rows[0][3] != "AC" {
		t.Fatalf("uf=%v", rows[0][3])
	}
}

// TestRunWithInferredArtifact drives the orchestrator with a target built
// through the real inference artifact (Build -> Encode -> LoadTargets),
// the way the deployed pipeline is wired. The store-generated surrogate
// key must never appear in the bulk insert.
func TestRunWithInferredArtifact(t *testing.T) {
	feed := schema.Feed{
		"rd": {
			"CNES":     {SampleValues: []any{"1234567"}, MinWidth: 7, MaxWidth: 7},
			"DT_INTER": {SampleValues: []any{"2023-01-31"}},
		},
	}
	m, err := schema.Build(feed)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	targets, err := schema.LoadTargets(&buf)
	if err != nil {
		t.Fatalf("LoadTargets: %v", err)
	}
	target := targets["rd"].WithoutSurrogateKey()

	base := t.TempDir()
	writeSource(t, base, "RDAC1901", "RDAC1901.csv",
		"CNES,DT_INTER\n1234567,20230131\n")

	repo := &fakeRepo{}
	o := newOrchestrator(base, repo)

	job := Job{System: "RD", Table: "rd", Target: target}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(repo.loads) != 1 {
		t.Fatalf("loads=%d, want 1", len(repo.loads))
	}
	got := repo.loads[0].columns
	if !reflect.DeepEqual(got, []string{"cnes", "dt_inter", "id_log", "uf"}) {
		t.Fatalf("columns=%v, surrogate key must not be loaded", got)
	}
	for _, c := range got {
		if c == schema.SurrogateKeyColumn {
			t.Fatalf("bulk insert includes store-generated column %q", c)
		}
	}
}

func TestRunSkipsProcessedFiles(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "RDAC1901", "RDAC1901.csv", "CNES\n1\n")
	writeSource(t, base, "RDSP2012", "RDSP2012.csv", "CNES\n2\n")

	repo := &fakeRepo{prefixes: []string{"RDAC1901_RDAC1901"}}
	o := newOrchestrator(base, repo)

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := repo.allRows()
	if len(rows) != 1 {
		t.Fatalf("rows=%d: %v", len(rows), rows)
	}
	if rows[0][3] != "SP" {
		t.Fatalf("uf=%v, want SP (AC file skipped)", rows[0][3])
	}
}

func TestRunAllowlistFilter(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "RDAC1901", "RDAC1901.csv",
		"CNES\n1111111\n2222222\n3333333\n")

	repo := &fakeRepo{}
	o := newOrchestrator(base, repo)
	o.AllowColumn = "CNES"
	o.Allow = map[string]struct{}{"1111111": {}, "3333333": {}}

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := repo.allRows()
	if len(rows) != 2 {
		t.Fatalf("rows=%d: %v", len(rows), rows)
	}
	// lineage keeps the original file row sequence for retained rows
	if rows[0][2] != "RDAC1901_RDAC1901_0" || rows[1][2] != "RDAC1901_RDAC1901_2" {
		t.Fatalf("lineage=%v, %v", rows[0][2], rows[1][2])
	}
}

// TestRunAllowlistEmptiesFile verifies a fully filtered file produces no
// load calls at all.
func TestRunAllowlistEmptiesFile(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "RDAC1901", "RDAC1901.csv", "CNES\n9999999\n")

	repo := &fakeRepo{}
	o := newOrchestrator(base, repo)
	o.AllowColumn = "cnes"
	o.Allow = map[string]struct{}{"1111111": {}}

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.loads) != 0 {
		t.Fatalf("loads=%v, want none", repo.loads)
	}
}

func TestRunChunksLargeFiles(t *testing.T) {
	base := t.TempDir()
	content := "CNES\n"
	for i := 0; i < 5; i++ {
		content += "1234567\n"
	}
	writeSource(t, base, "RDAC1901", "RDAC1901.csv", content)

	repo := &fakeRepo{}
	o := newOrchestrator(base, repo)
	o.ChunkSize = 2

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(repo.loads) != 3 {
		t.Fatalf("loads=%d, want 3", len(repo.loads))
	}
	if len(repo.allRows()) != 5 {
		t.Fatalf("rows=%d, want 5", len(repo.allRows()))
	}
}

// TestRunDroppedBatchContinues verifies one failed bulk insert drops that
// batch only; later chunks and files still load.
func TestRunDroppedBatchContinues(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "RDAC1901", "RDAC1901.csv", "CNES\n1\n2\n3\n4\n")

	repo := &fakeRepo{copyErr: errors.New("deadlock"), copyErrOnce: true}
	o := newOrchestrator(base, repo)
	o.ChunkSize = 2

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// first chunk dropped, second chunk loaded
	if len(repo.allRows()) != 2 {
		t.Fatalf("rows=%d, want 2", len(repo.allRows()))
	}
}

// TestRunEmptyFolder verifies a region folder with no data files is a
// no-op, not an error.
func TestRunEmptyFolder(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "RD", "RDAC1901")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	repo := &fakeRepo{}
	o := newOrchestrator(base, repo)
	o.ReadFile = func(path string) (*dataset.Batch, error) {
		t.Fatalf("ReadFile called for empty folder")
		return nil, nil
	}

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.loads) != 0 {
		t.Fatalf("loads=%v, want none", repo.loads)
	}
}

func TestRunCorruptFileContinues(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "RDAC1901", "RDAC1901.csv", "CNES\n1\n")
	writeSource(t, base, "RDSP2012", "RDSP2012.csv", "CNES\n2\n")

	repo := &fakeRepo{}
	o := newOrchestrator(base, repo)
	o.ReadFile = func(path string) (*dataset.Batch, error) {
		if filepath.Base(path) == "RDAC1901.csv" {
			return nil, errors.New("unreadable")
		}
		return dataset.ReadFile(path)
	}

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := repo.allRows()
	if len(rows) != 1 || rows[0][3] != "SP" {
		t.Fatalf("rows=%v, want only the SP file", rows)
	}
}

func TestRunCancelledContext(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "RDAC1901", "RDAC1901.csv", "CNES\n1\n")

	repo := &fakeRepo{}
	o := newOrchestrator(base, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := Job{System: "RD", Table: "rd", Target: orchTarget()}
	if err := o.Run(ctx, job); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err=%v, want context.Canceled", err)
	}
	if len(repo.loads) != 0 {
		t.Fatalf("loads=%v, want none", repo.loads)
	}
}

func TestRunValidatesJob(t *testing.T) {
	o := newOrchestrator(t.TempDir(), &fakeRepo{})

	bad := []Job{
		{Table: "rd", Target: orchTarget()},
		{System: "RD", Target: orchTarget()},
		{System: "RD", Table: "rd"},
	}
	for i, job := range bad {
		if err := o.Run(context.Background(), job); err == nil {
			t.Fatalf("job %d accepted: %+v", i, job)
		}
	}
}

func TestLoadAllowlist(t *testing.T) {
	in := "# retained facilities\n" +
		"1111111\n" +
		"\n" +
		"  2222222  \n"

	got := LoadAllowlist(in)
	want := map[string]struct{}{"1111111": {}, "2222222": {}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadAllowlist=%v, want %v", got, want)
	}
}
