// Package format renders numbers the way the German-language reports show them.
package format

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.German)

// Euro returns an amount with thousands separators, two decimals and the euro
// sign (e.g., "-1.234,56 €").
func Euro(amount float64) string {
	return printer.Sprintf("%.2f €", amount)
}

// Number returns a value with thousands separators and the given number of
// decimals (e.g., "9.500" or "5,26").
func Number(value float64, decimals int) string {
	return printer.Sprintf(fmt.Sprintf("%%.%df", decimals), value)
}

// Percent returns a percentage with two decimals (e.g., "19,00 %").
func Percent(value float64) string {
	return printer.Sprintf("%.2f %%", value)
}
