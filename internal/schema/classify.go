package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Justification codes attached to every type decision. They surface in the
// inference artifact so reviewers can see why a column got its type.
const (
	ReasonAllNull      = "all_values_null"
	ReasonLeadingZeros = "leading_zeros"
	ReasonBooleanSet   = "boolean_domain"
	ReasonISODate      = "iso_date"
	ReasonIntegerRange = "integer_range"
	ReasonNumeric      = "numeric_values"
	ReasonMixedTypes   = "mixed_types"
	ReasonFixedWidth   = "fixed_width"
	ReasonBoundedText  = "bounded_text"
	ReasonLongText     = "long_text"
)

// Decision is the outcome of classifying one column profile.
type Decision struct {
	Type   string
	Reason string
}

var booleanTokens = map[string]struct{}{
	"0": {}, "1": {}, "true": {}, "false": {}, "yes": {}, "no": {},
}

// Classify decides a storage type for one column profile.
//
// The branch order is the contract: first match wins, every branch returns
// immediately. Classify is a pure function of the profile.
//
// NOTE on branch 5: it fires only when the upstream profiler handed back
// native numeric sample values (JSON numbers / Go numerics). Digit strings
// such as "0039" deliberately fall through to the text branches. Most real
// extracts arrive as strings, so numeric-looking columns usually end up as
// char/varchar. This mirrors the profiler contract; do not "fix" it here.
func Classify(p Profile) Decision {
	// 1. Every sample null (and at least one sample seen).
	nonNull := make([]any, 0, len(p.SampleValues))
	for _, v := range p.SampleValues {
		if v != nil {
			nonNull = append(nonNull, v)
		}
	}
	if len(nonNull) == 0 {
		return Decision{Type: "text", Reason: ReasonAllNull}
	}

	// 2. Leading zeros force text; any numeric type would drop them.
	if p.HasLeadingZeros {
		return Decision{Type: "text", Reason: ReasonLeadingZeros}
	}

	// 3. Boolean token domain.
	if allSamples(nonNull, func(v any) bool {
		s := strings.ToLower(strings.TrimSpace(sampleString(v)))
		_, ok := booleanTokens[s]
		return ok
	}) {
		return Decision{Type: "boolean", Reason: ReasonBooleanSet}
	}

	// 4. Strict ISO calendar dates.
	if allSamples(nonNull, func(v any) bool {
		_, err := time.Parse("2006-01-02", strings.TrimSpace(sampleString(v)))
		return err == nil
	}) {
		return Decision{Type: "date", Reason: ReasonISODate}
	}

	// 5. Native numeric samples only; see function comment.
	if dec, ok := classifyNumeric(nonNull); ok {
		return dec
	}

	// 6. Mixed content stays text.
	if p.HasMixedTypes {
		return Decision{Type: "text", Reason: ReasonMixedTypes}
	}

	// 7-9. Width-based text classes.
	if p.MaxWidth == p.MinWidth {
		return Decision{Type: fmt.Sprintf("char(%d)", p.MaxWidth), Reason: ReasonFixedWidth}
	}
	if p.MaxWidth <= 255 {
		return Decision{Type: fmt.Sprintf("varchar(%d)", p.MaxWidth), Reason: ReasonBoundedText}
	}
	return Decision{Type: "text", Reason: ReasonLongText}
}

// classifyNumeric inspects non-null samples for native numeric values. It
// reports ok=false as soon as any sample is not a numeric primitive.
func classifyNumeric(vals []any) (Decision, bool) {
	allInt := true
	maxAbs := 0.0

	for _, v := range vals {
		var f float64
		switch t := v.(type) {
		case float64:
			f = t
		case float32:
			f = float64(t)
		case int:
			f = float64(t)
		case int32:
			f = float64(t)
		case int64:
			f = float64(t)
		default:
			return Decision{}, false
		}
		if f != math.Trunc(f) {
			allInt = false
		}
		if a := math.Abs(f); a > maxAbs {
			maxAbs = a
		}
	}

	if !allInt {
		return Decision{Type: "numeric", Reason: ReasonNumeric}, true
	}
	switch {
	case maxAbs <= math.MaxInt16:
		return Decision{Type: "smallint", Reason: ReasonIntegerRange}, true
	case maxAbs <= math.MaxInt32:
		return Decision{Type: "integer", Reason: ReasonIntegerRange}, true
	default:
		return Decision{Type: "bigint", Reason: ReasonIntegerRange}, true
	}
}

func allSamples(vals []any, pred func(any) bool) bool {
	for _, v := range vals {
		if !pred(v) {
			return false
		}
	}
	return true
}

// sampleString renders a sample value the way the boolean/date branches need
// to see it. Integral floats print without a fraction so a native 1.0 still
// matches the "1" boolean token.
func sampleString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatFloat(t, 'f', 0, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
