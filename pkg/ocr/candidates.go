package ocr

import (
	"regexp"
	"strings"
)

var candidatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:jumlah(?:\s+transfer)?|nominal|total(?:\s+bayar)?|zakat|infaq|infak|transfer)\s*[:=]?\s*(?:rp|idr)?\.?\s*[0-9][0-9.,]*`),
	regexp.MustCompile(`(?i)(?:rp|idr)\.?\s*[0-9][0-9.,]*`),
	regexp.MustCompile(`\b[0-9]{1,3}(?:[.,][0-9]{3})+(?:[.,][0-9]{2})?\b`),
	regexp.MustCompile(`\b[0-9]{2,9}\b`),
}

// Candidates lists every substring of text that could be the transferred
// amount, keyword and currency context included, in discovery order.
func Candidates(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, re := range candidatePatterns {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimRight(strings.TrimSpace(m), ".,")
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			if isPlausibleAmount(m) {
				out = append(out, m)
			}
		}
	}
	return out
}
