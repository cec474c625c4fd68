package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// FilePrefix builds the lineage prefix shared by every row of one source
// file: "{folder}_{filename}". Row identifiers append "_{n}" on top of this,
// and the progress skip-set is keyed by it.
func FilePrefix(folder, file string) string {
	f := filepath.Base(file)
	f = strings.TrimSuffix(f, filepath.Ext(f))
	return filepath.Base(folder) + "_" + f
}

// LineageID builds the per-row lineage identifier. The row sequence follows
// discovery order within the file, so identifiers embed processing order and
// re-runs resolve to the same values.
func LineageID(prefix string, row int) string {
	return fmt.Sprintf("%s_%d", prefix, row)
}

// RegionCode extracts the 2-letter region code that follows the source
// system prefix in a folder or file name, e.g. "RDAC1901" -> "AC" for
// system "RD". Reports false when the name does not follow the convention.
func RegionCode(system, name string) (string, bool) {
	re := regexp.MustCompile("^" + regexp.QuoteMeta(system) + "([A-Z]{2})")
	m := re.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", false
	}
	return m[1], true
}
