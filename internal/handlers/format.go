package handlers

import (
	"github.com/dustin/go-humanize"
)

// FormatBRL renders an amount the way Brazilian shoppers read it,
// e.g. "BRL 1.234,56".
func FormatBRL(v float64) string {
	return "BRL " + humanize.FormatFloat("#.###,##", v)
}

// FormatCount groups thousands with dots, e.g. "99.441".
func FormatCount(n int) string {
	return humanize.FormatInteger("#.###,", n)
}
