package util

import (
	"regexp"
	"strconv"
	"strings"
)

var firstNumberRegex = regexp.MustCompile(`\d+`)

// ParsePercent extracts the first integer from a discount string such as
// "72%" or "Flat 72% OFF". Returns false when no digits are present.
func ParsePercent(s string) (int, bool) {
	m := firstNumberRegex.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ComputePercent derives a discount percentage from an MRP and an offer
// price, rounded to the nearest whole percent. Returns false when the
// inputs cannot express a discount (zero/negative MRP, offer above MRP).
func ComputePercent(mrp, offer float64) (int, bool) {
	if mrp <= 0 || offer < 0 || offer > mrp {
		return 0, false
	}
	pct := (mrp - offer) / mrp * 100
	return int(pct + 0.5), true
}

// SafeAtoi parses an integer, returning 0 on any failure.
func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}
