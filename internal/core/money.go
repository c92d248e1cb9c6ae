package core

import (
	"fmt"
	"strconv"
)

// FormatMinor renders an amount in minor units as a decimal string,
// e.g. 4550 -> "45.50".
func FormatMinor(minor int64) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	whole := minor / 100
	frac := minor % 100
	s := strconv.FormatInt(whole, 10) + "." + fmt.Sprintf("%02d", frac)
	if neg {
		return "-" + s
	}
	return s
}

// FormatRupees renders an amount in paise with the currency symbol,
// e.g. 4550 -> "₹45.50". Used by the assistant's spoken responses.
func FormatRupees(minor int64) string {
	if minor < 0 {
		return "-₹" + FormatMinor(-minor)
	}
	return "₹" + FormatMinor(minor)
}
