// Package schema implements name normalization, per-column type inference,
// and schema-map construction for raw health-records extracts.
//
// The package is responsible for:
//   - Normalizing free-text table/column labels into safe identifiers
//   - Classifying a column's storage type from its statistical profile
//   - Building the per-table type map consumed by schema-creation tooling
//
// Design constraints:
//   - Classification is a pure function of the profile; no I/O, no state.
//   - Normalization is total and must never fail on any input.
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize converts an arbitrary label into a safe, lowercase identifier
// suitable for table and column names.
//
// Steps:
//   - lowercase
//   - decompose accented letters and drop combining marks ("Município" -> "municipio")
//   - collapse every run of non [a-z0-9] characters into a single underscore
//   - trim leading/trailing underscores
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.ToLower(raw)

	// Transformers are stateful; build a fresh chain per call so Normalize
	// stays safe for concurrent use.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}

	var b strings.Builder
	b.Grow(len(s))

	// Start true so leading separators are swallowed.
	lastSep := true
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		if !lastSep {
			b.WriteByte('_')
			lastSep = true
		}
	}

	return strings.TrimRight(b.String(), "_")
}
