package invoices

import (
	"fmt"
	"strconv"
	"strings"
)

const numberPrefix = "INV"

// NextNumber returns the invoice number following prev for the given year.
// Sequences restart at 00001 each year; an empty or unparsable prev starts a
// new sequence.
func NextNumber(prev string, year int) string {
	seq := 0
	if y, n, ok := parseNumber(prev); ok && y == year {
		seq = n
	}
	return fmt.Sprintf("%s-%d-%05d", numberPrefix, year, seq+1)
}

// YearPrefix is the LIKE pattern prefix shared by all numbers of a year.
func YearPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", numberPrefix, year)
}

func parseNumber(s string) (year, seq int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || parts[0] != numberPrefix {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq < 0 {
		return 0, 0, false
	}
	return year, seq, true
}
