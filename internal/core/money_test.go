package core

import (
	"errors"
	"testing"
)

func TestMint(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"-1", -100, true},
		{"-75.50", -7550, true},
		{"0", 0, true},
		{"1500.00", 150000, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{"+", 0, false},
		{".", 0, false},
	}
	for _, tc := range cases {
		got, err := Mint(tc.in, "USD")
		if tc.ok {
			if err != nil || got.Amount != tc.out {
				t.Fatalf("Mint(%q) expected %d, got %d (err=%v)", tc.in, tc.out, got.Amount, err)
			}
			if got.Currency != "USD" {
				t.Fatalf("Mint(%q) currency = %q, want USD", tc.in, got.Currency)
			}
		} else if err == nil {
			t.Fatalf("Mint(%q) expected error", tc.in)
		}
	}
}

func TestNewMoneyCurrencyValidation(t *testing.T) {
	m, err := NewMoney(100, "usd")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	if m.Currency != "USD" {
		t.Errorf("currency not normalized: %q", m.Currency)
	}

	for _, bad := range []string{"", "US", "USDX", "U1D", "€€€"} {
		if _, err := NewMoney(100, bad); !errors.Is(err, ErrInvalidCurrency) {
			t.Errorf("NewMoney(%q) expected ErrInvalidCurrency, got %v", bad, err)
		}
	}
}

func TestAddSubtractAreInverses(t *testing.T) {
	m1, _ := NewMoney(12345, "EUR")
	m2, _ := NewMoney(678, "EUR")

	sum, err := m1.Add(m2)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	back, err := sum.Subtract(m2)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	if back != m1 {
		t.Errorf("(m1+m2)-m2 = %v, want %v", back, m1)
	}
}

func TestArithmeticCurrencyMismatch(t *testing.T) {
	usd, _ := NewMoney(100, "USD")
	eur, _ := NewMoney(100, "EUR")

	if _, err := usd.Add(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Add expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.Subtract(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Subtract expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestDivideBy(t *testing.T) {
	cases := []struct {
		amount  int64
		divisor int64
		want    int64
	}{
		{100, 4, 25},
		{100, 3, 33},  // 33.33 rounds down
		{200, 3, 67},  // 66.67 rounds up
		{5, 2, 3},     // exact half rounds away from zero
		{-5, 2, -3},   // symmetric for negatives
		{-100, 3, -33},
		{0, 7, 0},
	}
	for _, tc := range cases {
		m, _ := NewMoney(tc.amount, "USD")
		got, err := m.DivideBy(tc.divisor)
		if err != nil {
			t.Fatalf("DivideBy(%d/%d): %v", tc.amount, tc.divisor, err)
		}
		if got.Amount != tc.want {
			t.Errorf("DivideBy(%d/%d) = %d, want %d", tc.amount, tc.divisor, got.Amount, tc.want)
		}
	}

	m, _ := NewMoney(100, "USD")
	if _, err := m.DivideBy(0); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("DivideBy(0) expected ErrDivisionByZero, got %v", err)
	}
}

func TestMoneyString(t *testing.T) {
	m, _ := NewMoney(135450, "USD")
	if got := m.String(); got != "1354.50 USD" {
		t.Errorf("String() = %q", got)
	}
	n, _ := NewMoney(-7550, "EUR")
	if got := n.String(); got != "-75.50 EUR" {
		t.Errorf("String() = %q", got)
	}
}
