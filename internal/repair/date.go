// Package repair recovers calendar dates from the 8-digit date fields of raw
// health-records extracts.
//
// Source files carry dates as fixed-width digit strings, nominally YYYYMMDD.
// A known data-entry defect transposes the day and month groups (YYYYDDMM),
// so repair tries both readings. The non-swapped reading always wins; when
// both readings are valid calendar dates the result can be a plausible but
// wrong date. That ambiguity is undetectable here and is a documented
// accuracy limitation of the upstream convention, not something this package
// tries to correct.
package repair

import (
	"time"
)

// nullDate is the upstream sentinel for "no date recorded".
const nullDate = "00000000"

// Result is the outcome of repairing one raw date value.
//
// KeepOriginal is true whenever the canonical value cannot be trusted as-is:
// either the value was unparsable (OK=false) or it parsed only after swapping
// the day/month groups. Callers must then retain the raw text in the shadow
// column. An unresolved date always sets KeepOriginal.
type Result struct {
	Date         time.Time
	OK           bool
	KeepOriginal bool
}

// Repair disambiguates a raw fixed-width date string. It is total: any input,
// including empty or non-numeric text, resolves to a Result without error.
func Repair(raw string) Result {
	if raw == nullDate {
		return Result{KeepOriginal: true}
	}
	if len(raw) != 8 || !allDigits(raw) {
		return Result{KeepOriginal: true}
	}

	// Preferred reading: YYYYMMDD. time.Parse validates the calendar, so
	// "20230231" fails here rather than rolling over.
	if t, err := time.Parse("20060102", raw); err == nil {
		return Result{Date: t, OK: true}
	}

	// Swapped reading: YYYYDDMM, only when the trailing group is a month.
	month := (int(raw[6]-'0') * 10) + int(raw[7]-'0')
	if month >= 1 && month <= 12 {
		swapped := raw[:4] + raw[6:8] + raw[4:6]
		if t, err := time.Parse("20060102", swapped); err == nil {
			return Result{Date: t, OK: true, KeepOriginal: true}
		}
	}

	return Result{KeepOriginal: true}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
