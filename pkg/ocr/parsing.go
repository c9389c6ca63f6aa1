package ocr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	centsRE  = regexp.MustCompile(`[.,]\d{2}$`)
	numberRE = regexp.MustCompile(`[0-9][0-9.,]*`)
	ribuRE   = regexp.MustCompile(`(?i)\b([1-9][0-9]{0,3})\s*[,.:;-]?\s*ribu\b`)
)

// ParseAmount turns a matched substring into rupiah. A trailing separator
// followed by exactly two digits is read as cents (10.000,50 -> 10000.50);
// every other separator is a thousands group.
func ParseAmount(found string) (decimal.Decimal, error) {
	num := numberRE.FindString(strings.TrimSpace(found))
	num = strings.TrimRight(num, ".,")
	if num == "" {
		return decimal.Zero, fmt.Errorf("no digits extracted from %q", found)
	}
	whole, cents := num, "00"
	if centsRE.MatchString(num) {
		whole, cents = num[:len(num)-3], num[len(num)-2:]
	}
	digits := onlyDigits(whole)
	if digits == "" {
		digits = "0"
	}
	amt, err := decimal.NewFromString(digits + "." + cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", found, err)
	}
	return amt, nil
}

// extractRibu reads "400 ribu" as 400000. Values above 9999 ribu are ignored.
func extractRibu(text string) (decimal.Decimal, string) {
	m := ribuRE.FindStringSubmatch(text)
	if len(m) < 2 {
		return decimal.Zero, ""
	}
	n, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, ""
	}
	return n.Mul(decimal.NewFromInt(1000)), m[0]
}
