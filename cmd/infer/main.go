// Command infer reads a column profile feed (table -> column -> profile
// JSON) and writes the inferred destination schema artifact consumed by the
// ingest command.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"healthetl/internal/schema"
)

func main() {
	var (
		inPath  string
		outPath string
	)

	flag.StringVar(&inPath, "profiles", "profiles.json", "column profile feed JSON path")
	flag.StringVar(&outPath, "out", "schema.json", "schema artifact output path (- for stdout)")
	flag.Parse()

	f, err := os.Open(inPath)
	if err != nil {
		fatalf("open profiles: %v", err)
	}
	defer f.Close()

	feed, err := schema.DecodeFeed(f)
	if err != nil {
		fatalf("decode profiles: %v", err)
	}

	m, err := schema.Build(feed)
	if err != nil {
		fatalf("build schema: %v", err)
	}

	out := os.Stdout
	if outPath != "-" {
		out, err = os.Create(outPath)
		if err != nil {
			fatalf("create output: %v", err)
		}
		defer out.Close()
	}

	if err := m.Encode(out); err != nil {
		fatalf("write schema: %v", err)
	}

	log.Printf("inferred %d table(s)", len(m))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
