package money

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestQuick(t *testing.T) {
	pending := decimal.NewFromInt(250)
	q := Quick(pending)

	if q.Quarter != "62.50" {
		t.Errorf("25%%: got %s, want 62.50", q.Quarter)
	}
	if q.Half != "125.00" {
		t.Errorf("50%%: got %s, want 125.00", q.Half)
	}
	if q.ThreeQuarters != "187.50" {
		t.Errorf("75%%: got %s, want 187.50", q.ThreeQuarters)
	}
	if q.Settle != "250.00" {
		t.Errorf("liquidar: got %s, want 250.00", q.Settle)
	}
}

func TestQuick_RoundsHalfUp(t *testing.T) {
	// 25% of 0.10 is 0.025 -> rounds up to 0.03
	q := Quick(decimal.RequireFromString("0.10"))
	if q.Quarter != "0.03" {
		t.Errorf("25%% of 0.10: got %s, want 0.03", q.Quarter)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"199.9", "199.90"},
		{"1234.567", "1234.57"},
		{"100.005", "100.01"},
	}
	for _, c := range cases {
		got := Format(decimal.RequireFromString(c.in))
		if got != c.want {
			t.Errorf("Format(%s): got %s, want %s", c.in, got, c.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	if got := FormatDate(d); got != "09/03/2024" {
		t.Errorf("FormatDate: got %s, want 09/03/2024", got)
	}
}
