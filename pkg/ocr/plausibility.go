package ocr

import "strings"

// isPlausibleAmount rejects numeric substrings that are more likely phone
// numbers, reference ids or dates than amounts.
func isPlausibleAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	low := strings.ToLower(s)
	d := onlyDigits(s)
	if d == "" {
		return false
	}
	if strings.Contains(low, "rp") || strings.Contains(low, "idr") {
		return true
	}
	for kw := range keywordBoost {
		if strings.Contains(low, kw) {
			return true
		}
	}
	if strings.ContainsAny(s, ".,") {
		return len(d) >= 3 && d[0] != '0'
	}
	if d[0] == '0' || len(d) < 2 || len(d) > 7 {
		return false
	}
	// mid-size bare ids like 250903
	if len(d) >= 5 && !(strings.HasSuffix(d, "000") || strings.HasSuffix(d, "500")) {
		return false
	}
	return true
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
