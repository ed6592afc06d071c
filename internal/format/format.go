// Package format renders numbers and long text for display.
//
// Output follows en-US conventions: comma thousands separators, whole-dollar
// currency with the sign before the symbol ("-$1,235").
package format

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultTruncateLength is the preview length used for long descriptions.
const DefaultTruncateLength = 100

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

var printer = message.NewPrinter(language.AmericanEnglish)

// Currency formats v as whole US dollars, rounding half away from zero.
func Currency(v float64) string {
	r := math.Round(v)
	if r == 0 {
		// avoid "-$0"
		return "$0"
	}
	if r < 0 {
		return "-$" + printer.Sprintf("%.0f", -r)
	}
	return "$" + printer.Sprintf("%.0f", r)
}

// Number formats v with thousands separators and at most three fraction
// digits, dropping trailing zeros.
func Number(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		return "0"
	}
	s := printer.Sprintf("%.3f", r)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// Count formats an item count.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// Truncate shortens text to maxLength characters plus an ellipsis.
// Text at or under the limit is returned unchanged. A non-positive maxLength
// falls back to DefaultTruncateLength.
func Truncate(text string, maxLength int) string {
	if text == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = DefaultTruncateLength
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + Ellipsis
}

// TruncateValue is Truncate for raw record values; nil yields "".
func TruncateValue(v any, maxLength int) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Truncate(t, maxLength)
	case *string:
		if t == nil {
			return ""
		}
		return Truncate(*t, maxLength)
	default:
		return ""
	}
}

// Exceeds reports whether text would be truncated at maxLength.
func Exceeds(text string, maxLength int) bool {
	if maxLength <= 0 {
		maxLength = DefaultTruncateLength
	}
	return len([]rune(text)) > maxLength
}
