package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyClampsNegative(t *testing.T) {
	m := NewMoney(decimal.NewFromInt(-5), "EUR")
	require.True(t, m.Amount.IsZero())
}

func TestSubFloorsAtZero(t *testing.T) {
	a := NewMoney(decimal.NewFromInt(10), "EUR")
	b := NewMoney(decimal.NewFromInt(25), "EUR")

	require.True(t, a.Sub(b).IsZero())
	require.Equal(t, "15", b.Sub(a).Amount.String())
}

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"17.845", "17.85"},
		{"17.844", "17.84"},
		{"102.855", "102.86"},
		{"0.005", "0.01"},
		{"30.00", "30.00"},
	}
	for _, tc := range cases {
		m := NewMoney(decimal.RequireFromString(tc.in), "EUR")
		require.Equal(t, tc.want, m.Round().Amount.StringFixed(2), "rounding %s", tc.in)
	}
}

func TestPercentKeepsPrecision(t *testing.T) {
	m := NewMoney(decimal.RequireFromString("33.33"), "EUR")
	got := m.Percent(decimal.NewFromInt(10))

	// 3.333 exactly; rounding only happens at Round().
	require.Equal(t, "3.333", got.Amount.String())
	require.Equal(t, "3.33", got.Round().Amount.StringFixed(2))
}

func TestTaxUsesOwnRate(t *testing.T) {
	m := NewMoneyWithTax(decimal.NewFromInt(85), "EUR", decimal.RequireFromString("0.21"))
	require.Equal(t, "17.85", m.Tax().Round().Amount.StringFixed(2))
}

func TestMinKeepsReceiverTaxRate(t *testing.T) {
	a := NewMoneyWithTax(decimal.NewFromInt(20), "EUR", decimal.RequireFromString("0.21"))
	b := NewMoney(decimal.NewFromInt(5), "EUR")

	got := a.Min(b)
	require.Equal(t, "5", got.Amount.String())
	require.Equal(t, "0.21", got.TaxRate.String())
}

func TestMonthlyAmortization(t *testing.T) {
	total := NewMoney(decimal.NewFromInt(180), "EUR")

	got := MonthlyAmortization(total, 180)
	require.NotNil(t, got)
	require.Equal(t, "30.00", got.StringFixed(2))

	got = MonthlyAmortization(total, 90)
	require.NotNil(t, got)
	require.Equal(t, "60.00", got.StringFixed(2))

	// Not positive: no monthly figure at all, never a division by zero.
	require.Nil(t, MonthlyAmortization(total, 0))
	require.Nil(t, MonthlyAmortization(total, -30))
}
