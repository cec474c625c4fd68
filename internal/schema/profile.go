package schema

import (
	"encoding/json"
	"fmt"
	"io"
)

// Profile is the per-column statistical summary produced by the external
// profiling step. Sample values keep their upstream representation: strings
// for text extracts, float64 for native numerics (JSON numbers), nil for
// nulls.
type Profile struct {
	SampleValues    []any `json:"sample_values"`
	DistinctCount   int   `json:"distinct_count"`
	NullCount       int   `json:"null_count"`
	MaxWidth        int   `json:"max_width"`
	MinWidth        int   `json:"min_width"`
	HasLeadingZeros bool  `json:"has_leading_zeros"`
	HasSpecialChars bool  `json:"has_special_chars"`
	HasMixedTypes   bool  `json:"has_mixed_types"`
}

// Validate rejects structurally malformed profiles at the boundary, before
// any classification runs. Classification itself assumes a valid profile.
func (p Profile) Validate() error {
	if p.DistinctCount < 0 {
		return fmt.Errorf("distinct_count must be >= 0, got %d", p.DistinctCount)
	}
	if p.NullCount < 0 {
		return fmt.Errorf("null_count must be >= 0, got %d", p.NullCount)
	}
	if p.MinWidth < 0 || p.MaxWidth < 0 {
		return fmt.Errorf("widths must be >= 0, got min=%d max=%d", p.MinWidth, p.MaxWidth)
	}
	if p.MinWidth > p.MaxWidth {
		return fmt.Errorf("min_width %d exceeds max_width %d", p.MinWidth, p.MaxWidth)
	}
	return nil
}

// Feed is the raw profile input: table -> column -> profile.
type Feed map[string]map[string]Profile

// DecodeFeed reads a profile feed from its JSON artifact.
func DecodeFeed(r io.Reader) (Feed, error) {
	var f Feed
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode profile feed: %w", err)
	}
	return f, nil
}
