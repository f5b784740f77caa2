package interpreter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

var installmentPairPattern = regexp.MustCompile(`(\d{1,3})\s*[/\-\x{FF0F}]\s*(\d{1,3})`)

type installmentCandidate struct {
	score   int
	conf    float64
	current int
	total   int
}

func scoreInstallmentLabel(label string) int {
	upper := strings.ToUpper(strings.ReplaceAll(label, "\n", " "))
	score := 0
	if strings.Contains(upper, "PLANO") {
		score += 3
	}
	if strings.Contains(upper, "PARCELA") {
		score += 2
	}
	if strings.Contains(upper, "VENCIMENTO") {
		score -= 2
	}
	return score
}

func validInstallmentPair(current, total int) bool {
	return 1 <= current && current <= total && total <= 240
}

// findInstallments extracts (current, total) exclusively from n/m patterns
// in value_text, scored by label and tie-broken by value_conf. Falls back
// to the highest-confidence valid pair from any field when no labeled
// candidate scores positively.
func findInstallments(fields []pipeline.OCRField) (current, total *int) {
	var scored []installmentCandidate
	var loose []installmentCandidate

	for _, f := range fields {
		value := derefOr(f.ValueText, "")
		m := installmentPairPattern.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		cur, err1 := strconv.Atoi(m[1])
		tot, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || !validInstallmentPair(cur, tot) {
			continue
		}

		label := derefOr(f.LabelText, "")
		cand := installmentCandidate{score: scoreInstallmentLabel(label), conf: f.ValueConf, current: cur, total: tot}
		loose = append(loose, cand)
		if cand.score > 0 {
			scored = append(scored, cand)
		}
	}

	pick := bestInstallmentCandidate(scored)
	if pick == nil {
		pick = bestInstallmentCandidate(loose)
	}
	if pick == nil {
		return nil, nil
	}
	c, t := pick.current, pick.total
	return &c, &t
}

// bestInstallmentCandidate returns the candidate with the highest
// (score, conf) pair, breaking ties by keeping the first one seen.
func bestInstallmentCandidate(candidates []installmentCandidate) *installmentCandidate {
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

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
