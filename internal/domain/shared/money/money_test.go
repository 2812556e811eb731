package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrencyCodes(t *testing.T) {
	code, err := Currency(" idr ")
	require.NoError(t, err)
	require.Equal(t, "IDR", code)
	for _, bad := range []string{"", "EU", "EURO", "E1R"} {
		_, err := Currency(bad)
		require.ErrorIs(t, err, ErrInvalidCurrency, bad)
	}
}

func TestArithmetic(t *testing.T) {
	sum, err := Must(1050, "EUR").Add(Must(250, "eur"))
	require.NoError(t, err)
	require.Equal(t, Must(1300, "EUR"), sum)
	require.Equal(t, "39.00 EUR", sum.Times(3).String())
	require.Equal(t, "-0.05 EUR", Must(-5, "EUR").String())

	_, err = Must(1, "EUR").Add(Must(1, "USD"))
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestCovers(t *testing.T) {
	total := Must(50000, "IDR")
	require.True(t, Must(50000, "IDR").Covers(total))
	require.False(t, Must(49999, "IDR").Covers(total))
	require.True(t, Money{Amount: 50000}.Covers(total))
	require.False(t, Must(90000, "USD").Covers(total))
}
