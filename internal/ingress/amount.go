package ingress

import (
	"fmt"
	"strconv"
	"strings"
)

// parseAmount keeps digits plus '.' and ',', treating ',' as the decimal
// separator when it is the last grouping symbol present (the PT-BR
// convention: "50.000,00" or plain "50000"). Rejects non-positive results.
func parseAmount(text string) (float64, error) {
	var kept strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			kept.WriteRune(r)
		}
	}
	raw := kept.String()
	if raw == "" {
		return 0, fmt.Errorf("ingress: no digits in amount %q", text)
	}

	lastComma := strings.LastIndexByte(raw, ',')
	lastDot := strings.LastIndexByte(raw, '.')

	var normalized string
	if lastComma > lastDot {
		// comma is the decimal separator; dots (if any) are thousands grouping
		normalized = strings.ReplaceAll(raw[:lastComma], ".", "") + "." + raw[lastComma+1:]
	} else {
		// dot is the decimal separator or there is no comma at all
		normalized = strings.ReplaceAll(raw, ",", "")
	}

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("ingress: invalid amount %q: %w", text, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("ingress: non-positive amount %v", value)
	}
	return value, nil
}
