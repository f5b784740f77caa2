package composer

import (
	"fmt"
	"strconv"
	"strings"
)

// fmtBRL renders a value as "R$ 1.234,56", swapping the grouping and
// decimal separators the way Brazilian currency is conventionally written.
func fmtBRL(v *float64) string {
	if v == nil {
		return "-"
	}
	grouped := groupThousands(fmt.Sprintf("%.2f", *v))
	return "R$ " + grouped
}

// fmtPct renders a value as "1,50% a.m.".
func fmtPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return strings.ReplaceAll(strconv.FormatFloat(*v, 'f', 2, 64), ".", ",") + "% a.m."
}

// groupThousands turns "1234.56" into "1.234,56": US-formatted decimal
// string in, pt-BR grouped string out.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart, decPart, _ := strings.Cut(s, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	out := grouped.String() + "," + decPart
	if neg {
		out = "-" + out
	}
	return out
}
