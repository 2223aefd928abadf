package service

import "fmt"

// FormatMoney renders an amount the way the storefront shows it:
// whole dollars below a thousand, then K/M/B with one decimal.
func FormatMoney(amount float64) string {
	switch {
	case amount >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", amount/1_000_000_000)
	case amount >= 1_000_000:
		return fmt.Sprintf("%.1fM", amount/1_000_000)
	case amount >= 1_000:
		return fmt.Sprintf("%.1fK", amount/1_000)
	default:
		return fmt.Sprintf("%d", int64(amount))
	}
}
