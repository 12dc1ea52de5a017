package dataset

import (
	"strconv"
	"strings"
)

// Kind identifies the runtime type of a single cell value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindBool
	KindText
)

// Value is a tagged cell value. The zero Value is the missing marker.
type Value struct {
	kind Kind
	num  float64
	b    bool
	str  string
}

// Missing returns the missing-marker value.
func Missing() Value {
	return Value{}
}

// Number returns a numeric cell value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Bool returns a boolean cell value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Text returns a textual cell value.
func Text(s string) Value {
	return Value{kind: KindText, str: s}
}

// Kind reports the cell's resolved kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsMissing reports whether the cell carries the missing marker.
func (v Value) IsMissing() bool {
	return v.kind == KindMissing
}

// Float returns the numeric payload. The second return is false for
// non-numeric cells.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Truth returns the boolean payload. The second return is false for
// non-boolean cells.
func (v Value) Truth() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Str returns the textual payload. The second return is false for
// non-text cells.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindText
}

// String renders the cell for display and CSV export. Missing cells render
// as the empty string; numbers use the shortest representation that
// round-trips through strconv.ParseFloat.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindText:
		return v.str
	default:
		return ""
	}
}

// missingTokens are source spellings treated as the missing marker during
// cell inference, compared case-insensitively after trimming.
var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
}

// ParseCell classifies a raw source token into a tagged Value. Numbers take
// precedence over booleans, booleans over text. Comma thousands separators
// are stripped before numeric parsing, but only when they sit in valid
// grouping positions; "1,2" stays text.
func ParseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if _, ok := missingTokens[strings.ToLower(s)]; ok {
		return Missing()
	}
	if num, ok := stripThousands(s); ok {
		if f, err := strconv.ParseFloat(num, 64); err == nil {
			return Number(f)
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return Text(s)
}

// stripThousands removes comma separators from the integer part of a
// candidate number when every comma delimits a group of exactly three
// digits ("12,345.6"). Any other comma placement means the token is not a
// separated number, and the second return is false.
func stripThousands(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}

	num := s
	var sign string
	if strings.HasPrefix(num, "+") || strings.HasPrefix(num, "-") {
		sign, num = num[:1], num[1:]
	}
	intPart, rest := num, ""
	if i := strings.IndexAny(num, ".eE"); i >= 0 {
		intPart, rest = num[:i], num[i:]
	}
	if strings.Contains(rest, ",") {
		return s, false
	}

	groups := strings.Split(intPart, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return s, false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return s, false
		}
	}
	return sign + strings.Join(groups, "") + rest, true
}
