package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "test",
		FlushEvery: time.Hour, // never ticks during the test
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  fs,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestSeriesKeyRoundTrip verifies key encoding/decoding and tag ordering.
func TestSeriesKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		metric   string
		tags     []string
		wantTags []string
	}{
		{name: "no_tags", metric: "rows_loaded", tags: nil, wantTags: []string{}},
		{name: "one_tag", metric: "rows_loaded", tags: []string{"table:x"}, wantTags: []string{"table:x"}},
		{name: "tags_sorted", metric: "files_failed", tags: []string{"uf:sp", "table:x"}, wantTags: []string{"table:x", "uf:sp"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			name, tags := splitSeriesKey(seriesKey(tc.metric, tc.tags))
			if name != tc.metric {
				t.Fatalf("name=%q, want %q", name, tc.metric)
			}
			if !reflect.DeepEqual(tags, tc.wantTags) {
				t.Fatalf("tags=%v, want %v", tags, tc.wantTags)
			}
		})
	}
}

// TestFlushSubmitsCountersAndResets verifies a flush submits buffered
// counters with the metric prefix and that buffers reset afterward.
func TestFlushSubmitsCountersAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)

	b.IncCounter("rows_loaded", 3, "table:procedures")
	b.IncCounter("rows_loaded", 2, "table:procedures")
	b.IncCounter("files_skipped", 1)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("no payload submitted")
	}
	got := map[string]float64{}
	for _, s := range payload.Series {
		got[s.Metric] = *s.Points[0].Value
		if *s.Type != datadogV2.METRICINTAKETYPE_COUNT {
			t.Fatalf("series %s type=%v, want COUNT", s.Metric, *s.Type)
		}
	}
	want := map[string]float64{
		"healthetl.rows_loaded":   5,
		"healthetl.files_skipped": 1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("submitted=%v, want %v", got, want)
	}

	// Second flush has nothing buffered and must not submit.
	if err := b.Flush(); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("payloads=%d after empty flush, want 1", fs.count())
	}
}

// TestFlushSubmitsDurationPercentiles verifies duration samples become
// percentile gauges.
func TestFlushSubmitsDurationPercentiles(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)

	for _, d := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		b.ObserveDuration("file_seconds", d, "table:procedures")
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("no payload submitted")
	}
	got := map[string]float64{}
	for _, s := range payload.Series {
		got[s.Metric] = *s.Points[0].Value
		if *s.Type != datadogV2.METRICINTAKETYPE_GAUGE {
			t.Fatalf("series %s type=%v, want GAUGE", s.Metric, *s.Type)
		}
	}
	if got["healthetl.file_seconds.max"] != 3 {
		t.Fatalf("max=%v, want 3", got["healthetl.file_seconds.max"])
	}
	if got["healthetl.file_seconds.samples"] != 3 {
		t.Fatalf("samples=%v, want 3", got["healthetl.file_seconds.samples"])
	}
	if got["healthetl.file_seconds.p50"] != 2 {
		t.Fatalf("p50=%v, want 2", got["healthetl.file_seconds.p50"])
	}
}

// TestFlushResetsOnSubmitError verifies buffers clear even when submission
// fails, so a metrics outage never wedges the pipeline.
func TestFlushResetsOnSubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("intake down")}
	b := newTestBackend(t, fs)

	b.IncCounter("rows_loaded", 1)
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush err=nil, want intake error")
	}

	fs.mu.Lock()
	fs.err = nil
	fs.mu.Unlock()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush after reset: %v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("payloads=%d, want 1 (failed flush must not re-submit)", fs.count())
	}
}

// TestCloseFlushesTail verifies Close performs a final flush.
func TestCloseFlushesTail(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)

	b.IncCounter("rows_loaded", 7)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("payloads=%d, want 1", fs.count())
	}
}

// TestIgnoresNonPositive verifies zero/negative deltas and negative
// durations are dropped.
func TestIgnoresNonPositive(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)

	b.IncCounter("rows_loaded", 0)
	b.IncCounter("rows_loaded", -1)
	b.ObserveDuration("file_seconds", -time.Second)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("payloads=%d, want 0", fs.count())
	}
}

func TestParseTagsCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "env:prod", want: []string{"env:prod"}},
		{in: " env:prod , service:healthetl ", want: []string{"env:prod", "service:healthetl"}},
		{in: ",,", want: []string{}},
	}
	for _, tc := range tests {
		if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
