package interpreter

import (
	"regexp"
	"strconv"
	"strings"
)

var brlAmountPattern = regexp.MustCompile(`(?:\A|[^\d])(\d{1,3}(?:\.\d{3})*,\d{2}|\d+,\d{2})(?:\z|[^\d])`)
var usAmountPattern = regexp.MustCompile(`(?:\A|[^\d])(\d+\.\d{2})(?:\z|[^\d])`)

// extractBRLAmount parses a monetary value out of free text, preferring
// the PT-BR grouped-thousands/comma-decimal format and falling back to a
// plain US decimal point.
func extractBRLAmount(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	collapsed := strings.Join(strings.Fields(text), " ")

	if m := brlAmountPattern.FindStringSubmatch(collapsed); m != nil {
		normalized := strings.ReplaceAll(m[1], ".", "")
		normalized = strings.ReplaceAll(normalized, ",", ".")
		if v, err := strconv.ParseFloat(normalized, 64); err == nil {
			return v, true
		}
	}

	if m := usAmountPattern.FindStringSubmatch(collapsed); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}

	return 0, false
}
