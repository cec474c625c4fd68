// Command procscrape downloads the national procedure reference table from
// its published HTML page and writes it as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"healthetl/internal/scrape"
)

func main() {
	var (
		url     string
		outPath string
		timeout time.Duration
	)

	flag.StringVar(&url, "url", "", "procedure table page URL (required)")
	flag.StringVar(&outPath, "out", "procedures.csv", "output CSV path (- for stdout)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "fetch timeout")
	flag.Parse()

	if url == "" {
		fatalf("missing required -url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	procs, err := scrape.Fetch(ctx, nil, url)
	if err != nil {
		fatalf("fetch: %v", err)
	}
	if len(procs) == 0 {
		fatalf("no procedures found at %s", url)
	}

	out := os.Stdout
	if outPath != "-" {
		out, err = os.Create(outPath)
		if err != nil {
			fatalf("create output: %v", err)
		}
		defer out.Close()
	}

	if err := scrape.WriteCSV(out, procs); err != nil {
		fatalf("write csv: %v", err)
	}

	log.Printf("wrote %d procedure(s)", len(procs))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
