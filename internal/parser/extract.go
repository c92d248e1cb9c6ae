// Package parser turns free-text expense statements into structured
// transaction candidates: amount extraction, description normalization
// and keyword-based category classification.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"voicexpense/internal/core"
)

var (
	// First decimal number in the text, optional comma thousands
	// separators and optional fractional part.
	amountPattern = regexp.MustCompile(`\d+(?:,\d+)*(?:\.\d+)?`)

	// Currency markers and digit runs stripped from descriptions. The
	// bare "rs" alternative also matches mid-word; that matches the
	// shipped behavior and is relied on by existing data.
	currencyPattern = regexp.MustCompile(`(?i)₹|\d+|rs|rupees|inr`)

	punctPattern = regexp.MustCompile(`[^\w\s]`)
)

// ExtractAmount finds the first numeric token in text and converts it to
// integer minor units (paise). The value is truncated toward zero, not
// rounded: "45.679" yields 4567. Returns 0 when no number is present,
// which callers must treat as a failed parse.
//
// Only the first number is used; later numbers (quantities, dates) are
// ignored. This is a known limitation, not something to solve here.
func ExtractAmount(text string) int64 {
	m := amountPattern.FindString(strings.ToLower(text))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0
	}
	return int64(f * 100)
}

// ExtractDescription strips currency markers, digits and punctuation from
// text and trims whitespace. An empty result degrades to the "Unknown"
// sentinel rather than an error.
func ExtractDescription(text string) string {
	s := currencyPattern.ReplaceAllString(text, "")
	s = punctPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return core.DescriptionUnknown
	}
	return s
}
