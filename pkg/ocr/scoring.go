package ocr

import (
	"strings"

	"github.com/shopspring/decimal"
)

var keywordBoost = map[string]int{
	"jumlah":  9,
	"nominal": 9,
	"total":   8,
	"zakat":   6,
	"infaq":   6,
	"infak":   6,
}

// BestAmount selects the best amount among raw candidates. Currency markers
// and amount keywords outrank bare numbers; ties go to the larger amount.
func BestAmount(matches []string) (decimal.Decimal, string, bool) {
	type cand struct {
		amt   decimal.Decimal
		raw   string
		score int
	}
	scoreFor := func(raw string) int {
		s := 0
		low := strings.ToLower(raw)
		if strings.Contains(low, "rp") || strings.Contains(low, "idr") {
			s += 10
		}
		for kw, boost := range keywordBoost {
			if strings.Contains(low, kw) {
				s += boost
				break
			}
		}
		if strings.ContainsAny(raw, ".,") {
			s += 5
		}
		if centsRE.MatchString(raw) {
			s += 3
		}
		if len(onlyDigits(raw)) >= 4 {
			s++
		}
		return s
	}

	var best *cand
	for _, m := range matches {
		amt, err := ParseAmount(m)
		if err != nil || !amt.IsPositive() {
			continue
		}
		c := cand{amt: amt, raw: m, score: scoreFor(m)}
		switch {
		case best == nil,
			c.score > best.score,
			c.score == best.score && c.amt.GreaterThan(best.amt),
			c.score == best.score && c.amt.Equal(best.amt) && len(c.raw) > len(best.raw):
			best = &c
		}
	}
	if best == nil {
		return decimal.Zero, "", false
	}
	return best.amt, best.raw, true
}
