package ingest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func TestAlreadyProcessed(t *testing.T) {
	repo := &fakeRepo{prefixes: []string{"RDAC1901_RDAC1901", "RDSP2012_part1"}}
	tr := &Tracker{Repo: repo, Log: zap.NewNop()}

	got := tr.AlreadyProcessed(context.Background(), "rd")
	want := map[string]struct{}{
		"RDAC1901_RDAC1901": {},
		"RDSP2012_part1":    {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AlreadyProcessed=%v, want %v", got, want)
	}
}

// TestAlreadyProcessedStorageFailure verifies a tracking outage degrades to
// an empty set instead of blocking the run.
func TestAlreadyProcessedStorageFailure(t *testing.T) {
	repo := &fakeRepo{prefixErr: errors.New("connection refused")}
	tr := &Tracker{Repo: repo, Log: zap.NewNop()}

	got := tr.AlreadyProcessed(context.Background(), "rd")
	if len(got) != 0 {
		t.Fatalf("AlreadyProcessed=%v, want empty", got)
	}
}
