package pricing

import (
	"fmt"
	"strings"
)

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
}

// Format renders minor units for display, e.g. Format(6900, "EUR") == "€69.00".
func Format(amount Money, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	value := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	if symbol, ok := currencySymbols[code]; ok {
		return sign + symbol + value
	}
	if code == "" {
		return sign + value
	}
	return sign + code + " " + value
}
