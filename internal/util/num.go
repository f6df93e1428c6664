package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// CanonicalUnit is the mass unit every weight figure is kept in.
const CanonicalUnit = "Kg"

var (
	reNonNumeric  = regexp.MustCompile(`[^0-9+\-.,\s]`)
	reDotGroups   = regexp.MustCompile(`^[+-]?\d{1,3}(?:\.\d{3})+$`)
	reCommaGroups = regexp.MustCompile(`^[+-]?\d{1,3}(?:,\d{3})+$`)
)

// ParseNumberLoose parses free-text numbers as they appear in spreadsheets:
// thousands separators, decimal commas, stray unit suffixes ("1,234.5 kg").
// Returns ok=false when no finite number can be extracted; callers decide the
// fallback.
func ParseNumberLoose(input string) (float64, bool) {
	s := strings.ReplaceAll(input, "\u00a0", " ")
	s = reNonNumeric.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "")
	if s == "" || s == "+" || s == "-" {
		return 0, false
	}

	switch {
	case reDotGroups.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	case reCommaGroups.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		// The separator that appears last is the decimal point.
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// ClampNonNegative is the tolerant parse for places where a numeric default
// is mandatory: unparsable or negative input becomes 0, never an error.
func ClampNonNegative(input string) float64 {
	n, ok := ParseNumberLoose(input)
	if !ok || n < 0 {
		return 0
	}
	return n
}

// Clamp0 clamps an already-numeric value to a non-negative finite number.
func Clamp0(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// ComputeLineWeight is max(0,weight) x max(0,qty); non-finite results
// coerce to 0.
func ComputeLineWeight(weight, qty float64) float64 {
	v := Clamp0(weight) * Clamp0(qty)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// NormalizeUnit maps known spellings of the canonical mass unit ("kg", "KG.",
// NBSP-padded variants) to CanonicalUnit. Unrecognized non-empty input passes
// through unchanged so the quality check can flag it; empty input stays empty.
func NormalizeUnit(input string) string {
	s := strings.TrimSpace(strings.ReplaceAll(input, "\u00a0", " "))
	if s == "" {
		return ""
	}
	switch strings.ToLower(s) {
	case "kg", "kg.", "kgs":
		return CanonicalUnit
	}
	return s
}

// Round2 rounds to two decimals for weight display and summaries.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
