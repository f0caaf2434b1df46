package format

import "testing"

func TestEuro(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{0, "0,00 €"},
		{2850, "2.850,00 €"},
		{237.5, "237,50 €"},
		{-15000, "-15.000,00 €"},
		{1234567.891, "1.234.567,89 €"},
	}

	for _, tt := range tests {
		if got := Euro(tt.amount); got != tt.expected {
			t.Errorf("Euro(%v) = %q, expected %q", tt.amount, got, tt.expected)
		}
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		value    float64
		decimals int
		expected string
	}{
		{9500, 0, "9.500"},
		{5.263, 2, "5,26"},
		{0.4, 1, "0,4"},
	}

	for _, tt := range tests {
		if got := Number(tt.value, tt.decimals); got != tt.expected {
			t.Errorf("Number(%v, %d) = %q, expected %q", tt.value, tt.decimals, got, tt.expected)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(19); got != "19,00 %" {
		t.Errorf("Percent(19) = %q, expected %q", got, "19,00 %")
	}
}
