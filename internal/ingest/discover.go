// Package ingest drives the end-to-end load: discover source files, skip
// what is already in the store, shape and coerce each batch, tag lineage,
// and hand fixed-size chunks to the bulk loader.
package ingest

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Discoverer walks the source directory layout:
//
//	{base}/{system}/{system}{UF}.../...{ext}
//
// where UF is the 2-letter region code. "No data yet for this source" is an
// expected steady state: a missing base path yields an empty result and a
// warning, never an error.
type Discoverer struct {
	Base string
	Ext  string
	Log  *zap.Logger
}

// Folders lists the per-region subfolders for one source system, in
// directory order.
func (d *Discoverer) Folders(system string) []string {
	dir := filepath.Join(d.Base, system)
	entries, err := os.ReadDir(dir)
	if err != nil {
		d.Log.Warn("source folder discovery: path unavailable",
			zap.String("path", dir), zap.Error(err))
		return nil
	}

	re := folderPattern(system)
	var out []string
	for _, e := range entries {
		if !e.IsDir() || !re.MatchString(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out
}

// Files lists the data files inside one region folder, in directory order.
func (d *Discoverer) Files(folder string) []string {
	entries, err := os.ReadDir(folder)
	if err != nil {
		d.Log.Warn("source file discovery: path unavailable",
			zap.String("path", folder), zap.Error(err))
		return nil
	}

	ext := d.Ext
	if ext == "" {
		ext = ".csv"
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		out = append(out, filepath.Join(folder, e.Name()))
	}
	return out
}

func folderPattern(system string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(system) + "[A-Z]{2}")
}
