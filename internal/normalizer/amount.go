package normalizer

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// nonNumeric matches every rune that cannot be part of an amount.
var nonNumeric = regexp.MustCompile(`[^0-9.,\-]`)

// ParseAmount coerces a loosely formatted amount into a decimal.
//
// Currency symbols, whitespace and thousands separators are removed before
// parsing; "(1,234.56)" is read as a negative. Empty or unparsable input
// returns an invalid NullDecimal, never zero.
//
// EXAMPLES:
//   - "£1,234.56"  -> 1234.56
//   - "1,234.56 "  -> 1234.56
//   - "(1234.56)"  -> -1234.56
//   - "n/a"        -> absent
func ParseAmount(value string) decimal.NullDecimal {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.NullDecimal{}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = nonNumeric.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if negative && d.IsPositive() {
		d = d.Neg()
	}

	return decimal.NewNullDecimal(d)
}
