package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"healthetl/internal/dataset"
	"healthetl/internal/repair"
	"healthetl/internal/schema"
)

// ShadowPrefix names the sibling column that preserves a date's raw text
// whenever the repaired value cannot be trusted as a literal reading.
const ShadowPrefix = "new_"

// Error reports a column whose values could not be converted to the declared
// type. Coercion is column-at-a-time, so one bad column never corrupts
// another; the caller logs the error and skips the file.
type Error struct {
	Column string
	Spec   schema.TypeSpec
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("coerce column %q to %s: %v", e.Column, e.Spec, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Coerce converts every target column present in the batch to its declared
// type, in place. Unrecoverable cell values become nil rather than errors;
// only structural failures surface as *Error.
func Coerce(b *dataset.Batch, target schema.Target) error {
	for _, tc := range target {
		ix := b.ColumnIndex(tc.Name)
		if ix < 0 {
			continue
		}
		if err := coerceColumn(b, ix, tc); err != nil {
			return &Error{Column: tc.Name, Spec: tc.Spec, Err: err}
		}
	}
	return nil
}

func coerceColumn(b *dataset.Batch, ix int, tc schema.Column) error {
	for _, row := range b.Rows {
		if len(row) <= ix {
			return fmt.Errorf("row has %d cells, column index %d out of range", len(row), ix)
		}
	}

	switch tc.Spec.Kind {
	case schema.KindDate:
		coerceDates(b, ix, tc.Name)
	case schema.KindSmallInt:
		coerceInts(b, ix, math.MinInt16, math.MaxInt16)
	case schema.KindInteger:
		coerceInts(b, ix, math.MinInt32, math.MaxInt32)
	case schema.KindBigInt:
		coerceInts(b, ix, math.MinInt64, math.MaxInt64)
	case schema.KindNumeric:
		coerceFloats(b, ix)
	case schema.KindBoolean:
		coerceBools(b, ix)
	default:
		// char/varchar/text and anything unrecognized: stringify + strip.
		coerceText(b, ix)
	}
	return nil
}

// coerceDates repairs every raw value and populates the shadow column in the
// same pass. The shadow column is created (or reset, when alignment already
// added it from the target schema) to null; it receives the original text
// only for rows where the repaired value diverges from a literal reading.
// Absent (nil) cells stay null in both columns.
func coerceDates(b *dataset.Batch, ix int, name string) {
	shadow := b.ColumnIndex(ShadowPrefix + name)
	if shadow < 0 {
		b.AddColumn(ShadowPrefix+name, nil)
		shadow = len(b.Columns) - 1
	}

	for _, row := range b.Rows {
		row[shadow] = nil

		v := row[ix]
		if v == nil {
			continue
		}
		raw := strings.TrimSpace(cellString(v))
		if raw == "" {
			row[ix] = nil
			continue
		}

		res := repair.Repair(raw)
		if res.OK {
			row[ix] = res.Date
		} else {
			row[ix] = nil
		}
		if res.KeepOriginal {
			row[shadow] = raw
		}
	}
}

func coerceText(b *dataset.Batch, ix int) {
	for _, row := range b.Rows {
		if row[ix] == nil {
			continue
		}
		row[ix] = strings.TrimSpace(cellString(row[ix]))
	}
}

// coerceInts parses cells as numbers and narrows to the declared signed
// width. Unparsable, fractional, or out-of-range values become null.
func coerceInts(b *dataset.Batch, ix int, lo, hi int64) {
	for _, row := range b.Rows {
		n, ok := cellInt(row[ix])
		if !ok || n < lo || n > hi {
			row[ix] = nil
			continue
		}
		row[ix] = n
	}
}

func coerceFloats(b *dataset.Batch, ix int) {
	for _, row := range b.Rows {
		f, ok := cellFloat(row[ix])
		if !ok {
			row[ix] = nil
			continue
		}
		row[ix] = f
	}
}

// coerceBools maps literal true/false/1/0 tokens, native or string form, to
// bool. Anything else is left unmapped (null).
func coerceBools(b *dataset.Batch, ix int) {
	for _, row := range b.Rows {
		switch t := row[ix].(type) {
		case nil:
		case bool:
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "1", "true":
				row[ix] = true
			case "0", "false":
				row[ix] = false
			default:
				row[ix] = nil
			}
		case float64:
			switch t {
			case 1:
				row[ix] = true
			case 0:
				row[ix] = false
			default:
				row[ix] = nil
			}
		case int64:
			switch t {
			case 1:
				row[ix] = true
			case 0:
				row[ix] = false
			default:
				row[ix] = nil
			}
		default:
			row[ix] = nil
		}
	}
}

func cellString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatFloat(t, 'f', 0, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(v)
	}
}

// cellInt parses a cell as a signed 64-bit integer. Plain integer strings
// go through ParseInt so full-range values survive exactly; only
// decimal-formatted strings and native floats take the float path, which
// rejects anything past exact float64 integer precision.
func cellInt(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return floatToInt(t)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

// floatToInt accepts only integral floats strictly inside ±2^53, the range
// where float64 represents every integer exactly. 2^53 itself is rejected:
// neighboring odd integers round onto it, so the value is ambiguous.
func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func cellFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
