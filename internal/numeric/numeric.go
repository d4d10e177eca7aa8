package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal converts a user-typed numeric string into a decimal value.
// It accepts either "." or "," as the decimal separator. When both are
// present the "." is treated as a thousands separator and the "," as the
// decimal point ("1.234,56" parses as 1234.56). The function is total:
// empty, blank or unparseable input yields the provided fallback.
func ParseDecimal(raw string, fallback decimal.Decimal) decimal.Decimal {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	hasDot := strings.Contains(trimmed, ".")
	hasComma := strings.Contains(trimmed, ",")
	switch {
	case hasDot && hasComma:
		trimmed = strings.ReplaceAll(trimmed, ".", "")
		trimmed = strings.ReplaceAll(trimmed, ",", ".")
	case hasComma:
		trimmed = strings.ReplaceAll(trimmed, ",", ".")
	}
	trimmed = strings.TrimSuffix(trimmed, ".")
	if trimmed == "" {
		return fallback
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

// SanitizeQuantity normalises a free-form quantity keystroke into a
// canonical decimal string using "." as the decimal point. The decimal
// separator is whichever of the last "." or last "," occurs latest; stray
// separators in the integer part (thousands grouping) are discarded, and
// the fraction is truncated, not rounded, to maxDecimals digits. The
// function is idempotent and returns "" for blank input so callers can
// re-apply their own default on blur.
func SanitizeQuantity(raw string, maxDecimals int) string {
	if maxDecimals < 0 {
		maxDecimals = 0
	}
	var cleaned strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			cleaned.WriteRune(r)
		}
	}
	s := cleaned.String()
	if s == "" {
		return ""
	}
	sep := strings.LastIndexAny(s, ".,")
	if sep < 0 {
		return s
	}
	intPart := stripSeparators(s[:sep])
	fracPart := stripSeparators(s[sep+1:])
	if len(fracPart) > maxDecimals {
		fracPart = fracPart[:maxDecimals]
	}
	if fracPart == "" {
		if maxDecimals == 0 {
			return intPart
		}
		return intPart + "."
	}
	return intPart + "." + fracPart
}

func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", "")
}

// Round2 rounds a monetary value to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
