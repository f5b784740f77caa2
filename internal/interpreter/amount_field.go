package interpreter

import (
	"strings"

	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

type amountCandidate struct {
	score int
	conf  float64
	value float64
}

func scoreAmountLabel(label string) int {
	upper := strings.ToUpper(strings.ReplaceAll(label, "\n", " "))
	score := 0
	if strings.Contains(upper, "VALOR DO DOCUMENTO") || strings.Contains(upper, "DOCUMENTO VALOR DO") || strings.Contains(upper, "VALOR DO") {
		score += 4
	}
	if strings.Contains(upper, "VALOR PARCELA") || strings.Contains(upper, "VALOR DA PARCELA") {
		score += 3
	}
	if strings.Contains(upper, "VALOR") {
		score += 2
	}
	if strings.Contains(upper, "DOCUMENTO") {
		score += 1
	}
	return score
}

// findAmount picks the installment amount by label score first, falling
// back to the highest-confidence monetary value anywhere in the field list.
func findAmount(fields []pipeline.OCRField) (float64, bool) {
	var scored []amountCandidate
	var sweep []amountCandidate

	for _, f := range fields {
		value := derefOr(f.ValueText, "")
		amt, ok := extractBRLAmount(value)
		if !ok {
			continue
		}
		sweep = append(sweep, amountCandidate{conf: f.ValueConf, value: amt})

		label := derefOr(f.LabelText, "")
		if s := scoreAmountLabel(label); s > 0 {
			scored = append(scored, amountCandidate{score: s, conf: f.ValueConf, value: amt})
		}
	}

	if best := bestAmountCandidate(scored); best != nil {
		return best.value, true
	}
	if best := bestAmountCandidate(sweep); best != nil {
		return best.value, true
	}
	return 0, false
}

func bestAmountCandidate(candidates []amountCandidate) *amountCandidate {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score || (c.score == best.score && c.conf > best.conf) {
			best = c
		}
	}
	return &best
}

var companyKeywords = []string{"BANCO", "BV", "VOTORANTIM"}

// findCompany returns the highest-confidence value_text containing a bank
// keyword, preserving its original casing.
func findCompany(fields []pipeline.OCRField) (string, bool) {
	var bestConf float64
	var bestValue string
	found := false

	for _, f := range fields {
		raw := strings.TrimSpace(derefOr(f.ValueText, ""))
		if raw == "" {
			continue
		}
		upper := strings.ToUpper(raw)
		matches := false
		for _, kw := range companyKeywords {
			if containsWord(upper, kw) {
				matches = true
				break
			}
		}
		if !matches {
			continue
		}
		if !found || f.ValueConf > bestConf {
			bestConf = f.ValueConf
			bestValue = strings.Join(strings.Fields(raw), " ")
			found = true
		}
	}
	return bestValue, found
}

// containsWord is a coarse word-boundary check: substring match flanked by
// non-letters (or string edges), standing in for a \b-anchored regex.
func containsWord(haystack, word string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(haystack[start-1])
		afterOK := end == len(haystack) || !isLetter(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
