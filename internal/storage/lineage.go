package storage

// StripRowSuffix removes the trailing "_<digits>" row-sequence suffix from a
// lineage identifier, leaving the per-file prefix. Values without the suffix
// are returned unchanged.
//
// Backends without server-side regex support (MSSQL, SQLite) fetch distinct
// full identifiers and strip here; Postgres does the same transform in SQL.
func StripRowSuffix(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) || i == 0 || s[i-1] != '_' {
		return s
	}
	return s[:i-1]
}

// DedupePrefixes strips the row suffix from each lineage identifier and
// returns the distinct prefixes, preserving first-seen order.
func DedupePrefixes(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		p := StripRowSuffix(id)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
