package invoices

import (
	"strings"

	"github.com/shopspring/decimal"
)

var vatRate = decimal.RequireFromString("0.15")

// VAT returns 15% of subtotalCents rounded half away from zero to whole cents.
func VAT(subtotalCents int64) int64 {
	return decimal.NewFromInt(subtotalCents).Mul(vatRate).Round(0).IntPart()
}

// FormatRand renders cents as "R 1,500.75".
func FormatRand(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	fixed := decimal.New(cents, -2).StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "R " + b.String() + "." + frac
}
