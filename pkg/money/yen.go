// Package money formats currency and counts for reports.
package money

import (
	"math"

	gomoney "github.com/Rhymond/go-money"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Japanese)

// FormatYen renders v rounded to whole yen, e.g. ¥1,234,567.
func FormatYen(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return gomoney.New(int64(math.Round(v)), gomoney.JPY).Display()
}

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatRatio renders an index such as SPI with three decimals.
func FormatRatio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return printer.Sprintf("%.3f", v)
}
