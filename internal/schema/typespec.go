package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the storage-type variants the pipeline understands.
type Kind int

const (
	KindText Kind = iota
	KindBoolean
	KindDate
	KindSmallInt
	KindInteger
	KindBigInt
	KindNumeric
	KindChar
	KindVarchar
)

// TypeSpec is the parsed form of a type string such as "varchar(255)".
// Specs are parsed once at schema-load time; coercion and truncation switch
// on Kind instead of re-parsing strings.
type TypeSpec struct {
	Kind   Kind
	Length int // only for KindChar / KindVarchar
}

// ParseTypeSpec parses a type string case-insensitively. Unrecognized specs
// degrade to text, matching the coercer's default behavior.
func ParseTypeSpec(s string) TypeSpec {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, ok := parseSized(s, "char"); ok {
		return TypeSpec{Kind: KindChar, Length: n}
	}
	if n, ok := parseSized(s, "varchar"); ok {
		return TypeSpec{Kind: KindVarchar, Length: n}
	}

	switch s {
	case "boolean", "bool":
		return TypeSpec{Kind: KindBoolean}
	case "date":
		return TypeSpec{Kind: KindDate}
	case "smallint":
		return TypeSpec{Kind: KindSmallInt}
	case "integer", "int":
		return TypeSpec{Kind: KindInteger}
	case "bigint":
		return TypeSpec{Kind: KindBigInt}
	case "numeric", "decimal", "float":
		return TypeSpec{Kind: KindNumeric}
	default:
		return TypeSpec{Kind: KindText}
	}
}

func parseSized(s, base string) (int, bool) {
	if !strings.HasPrefix(s, base+"(") || !strings.HasSuffix(s, ")") {
		return 0, false
	}
	inner := s[len(base)+1 : len(s)-1]
	n, err := strconv.Atoi(strings.TrimSpace(inner))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsText reports whether values of this spec are stored as character data.
func (t TypeSpec) IsText() bool {
	return t.Kind == KindText || t.Kind == KindChar || t.Kind == KindVarchar
}

// FixedWidth reports whether the spec carries a declared maximum length.
func (t TypeSpec) FixedWidth() bool {
	return t.Kind == KindChar || t.Kind == KindVarchar
}

func (t TypeSpec) String() string {
	switch t.Kind {
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindSmallInt:
		return "smallint"
	case KindInteger:
		return "integer"
	case KindBigInt:
		return "bigint"
	case KindNumeric:
		return "numeric"
	case KindChar:
		return fmt.Sprintf("char(%d)", t.Length)
	case KindVarchar:
		return fmt.Sprintf("varchar(%d)", t.Length)
	default:
		return "text"
	}
}
