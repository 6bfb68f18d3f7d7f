// Package money holds the small pure helpers the POS screens rely on:
// amount formatting, date formatting, and the quick-amount shortcuts
// shown next to the abono input.
package money

import (
	"time"

	"github.com/shopspring/decimal"
)

// Format renders an amount with exactly two decimals (half-up rounding),
// the canonical wire representation for all monetary fields.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Percentage returns pct% of amount rounded to two decimals.
func Percentage(amount decimal.Decimal, pct int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100)).Round(2)
}

// QuickAmounts are the prefill shortcuts offered on the payment-entry
// screen. They operate on the pending balance only; picking one is not a
// backend operation.
type QuickAmounts struct {
	Quarter       string `json:"25"`
	Half          string `json:"50"`
	ThreeQuarters string `json:"75"`
	Settle        string `json:"liquidar"`
}

// Quick computes the four shortcut amounts for a pending balance.
func Quick(pending decimal.Decimal) QuickAmounts {
	return QuickAmounts{
		Quarter:       Format(Percentage(pending, 25)),
		Half:          Format(Percentage(pending, 50)),
		ThreeQuarters: Format(Percentage(pending, 75)),
		Settle:        Format(pending.Round(2)),
	}
}

// FormatDate renders a date the way tickets print it (DD/MM/YYYY).
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
