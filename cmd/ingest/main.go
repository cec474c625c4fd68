// Command ingest loads raw health-record extracts into the destination
// store: one job per configured source system and destination table, with
// resumable progress tracked through the lineage column.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"healthetl/internal/config"
	"healthetl/internal/ingest"
	"healthetl/internal/metrics"
	"healthetl/internal/metrics/datadog"
	"healthetl/internal/schema"
	"healthetl/internal/storage"

	// register all backends with the storage factory; config selects one.
	_ "healthetl/internal/storage/all"
)

func main() {
	var (
		cfgPath        string
		table          string
		metricsBackend string
	)

	flag.StringVar(&cfgPath, "config", "config.yaml", "config YAML path")
	flag.StringVar(&table, "table", "", "destination table (default: every table in the schema artifact)")
	flag.StringVar(&metricsBackend, "metrics-backend", "none", "metrics backend (datadog, none)")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("config: %v", err)
	}

	logCfg := zap.NewProductionConfig()
	if *verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer logger.Sync()

	setupMetrics(metricsBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer repo.Close()

	targets, err := loadTargets(cfg.SchemaPath, table)
	if err != nil {
		fatalf("schema: %v", err)
	}

	allow, err := loadAllowlist(cfg.Filter.AllowlistPath)
	if err != nil {
		fatalf("allowlist: %v", err)
	}

	orch := &ingest.Orchestrator{
		Discoverer: &ingest.Discoverer{
			Base: cfg.Source.BasePath,
			Ext:  cfg.Source.FileExt,
			Log:  logger,
		},
		Tracker:     &ingest.Tracker{Repo: repo, Log: logger},
		Loader:      &ingest.Loader{Repo: repo, Log: logger},
		Log:         logger,
		ChunkSize:   cfg.ChunkSize,
		AllowColumn: cfg.Filter.AllowColumn,
		Allow:       allow,
	}

	start := time.Now()
	failed := false
	for _, system := range cfg.Source.Systems {
		for tbl, target := range targets {
			job := ingest.Job{System: system, Table: tbl, Target: target}
			if err := orch.Run(ctx, job); err != nil {
				logger.Error("run aborted",
					zap.String("system", system), zap.String("table", tbl), zap.Error(err))
				failed = true
			}
		}
	}

	logger.Info("ingestion finished",
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))

	if err := metrics.Flush(); err != nil {
		logger.Warn("metrics flush failed", zap.Error(err))
	}
	if failed {
		os.Exit(1)
	}
}

// setupMetrics installs the selected metrics backend; the nop backend stays
// active for "none" or on init failure.
func setupMetrics(name string) {
	switch name {
	case "datadog":
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: "ingest",
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: datadog init failed: %v; metrics disabled", err)
			return
		}
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
}

func loadTargets(path, only string) (map[string]schema.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	targets, err := schema.LoadTargets(f)
	if err != nil {
		return nil, err
	}

	// The artifact describes the full table, surrogate key included; the
	// store generates that column, so the load path must not carry it.
	for tbl, t := range targets {
		targets[tbl] = t.WithoutSurrogateKey()
	}

	if only == "" {
		return targets, nil
	}

	only = strings.ToLower(only)
	t, ok := targets[only]
	if !ok {
		return nil, fmt.Errorf("table %q not in schema artifact %s", only, path)
	}
	return map[string]schema.Target{only: t}, nil
}

func loadAllowlist(path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ingest.LoadAllowlist(string(data)), nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
