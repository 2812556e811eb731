package money

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// Money is an amount in hundredths of the currency unit. Chalet rates,
// quotes and payments all use the same scale, including for IDR.
type Money struct {
	Amount   int64  `json:"amount" bson:"amount"`
	Currency string `json:"currency" bson:"currency"`
}

// Currency upper-cases code and checks it is three ASCII letters.
func Currency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return code, nil
}

func New(amount int64, currency string) (Money, error) {
	code, err := Currency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: code}, nil
}

// Must is New for fixtures; it panics on a bad currency.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

func (m Money) IsZero() bool { return m.Amount == 0 }

// Add sums amounts of one currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency == "" || m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Times(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

// Covers reports whether m pays at least other. An unset currency on
// either side is treated as matching, since some gateways omit it.
func (m Money) Covers(other Money) bool {
	if m.Currency != "" && other.Currency != "" && m.Currency != other.Currency {
		return false
	}
	return m.Amount >= other.Amount
}

func (m Money) String() string {
	abs, sign := m.Amount, ""
	if abs < 0 {
		abs, sign = -abs, "-"
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, abs/100, abs%100, m.Currency)
}
