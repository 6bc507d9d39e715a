package model

import (
	"github.com/shopspring/decimal"
)

// Money is a fixed-precision amount in a single currency, carrying the tax
// rate (fraction, 0..1) that applies to it. Arithmetic keeps full precision;
// Round is applied once at the point a figure is displayed or persisted.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return Money{Amount: amount, Currency: currency}
}

func NewMoneyWithTax(amount decimal.Decimal, currency string, taxRate decimal.Decimal) Money {
	m := NewMoney(amount, currency)
	m.TaxRate = taxRate
	return m
}

func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) Add(o Money) Money {
	m.Amount = m.Amount.Add(o.Amount)
	return m
}

// Sub floors at zero; Money amounts are never negative.
func (m Money) Sub(o Money) Money {
	m.Amount = m.Amount.Sub(o.Amount)
	if m.Amount.IsNegative() {
		m.Amount = decimal.Zero
	}
	return m
}

func (m Money) MulQty(qty int) Money {
	m.Amount = m.Amount.Mul(decimal.NewFromInt(int64(qty)))
	return m
}

// Percent returns pct% of m, pct given in 0..100.
func (m Money) Percent(pct decimal.Decimal) Money {
	m.Amount = m.Amount.Mul(pct).Div(decimal.NewFromInt(100))
	return m
}

// Tax returns the tax portion of m using its own tax rate.
func (m Money) Tax() Money {
	t := m
	t.Amount = m.Amount.Mul(m.TaxRate)
	return t
}

// Round rounds the amount to 2 decimal places, half up. Amounts are
// non-negative so decimal's round-half-away-from-zero is round-half-up here.
func (m Money) Round() Money {
	m.Amount = m.Amount.Round(2)
	return m
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) LessThan(o Money) bool {
	return m.Amount.LessThan(o.Amount)
}

func (m Money) GreaterThan(o Money) bool {
	return m.Amount.GreaterThan(o.Amount)
}

// Min returns the smaller of m and o, keeping m's currency and tax rate.
func (m Money) Min(o Money) Money {
	if o.Amount.LessThan(m.Amount) {
		m.Amount = o.Amount
	}
	return m
}

func (m Money) StringFixed() string {
	return m.Amount.Round(2).StringFixed(2)
}

// MonthlyAmortization computes the display-only monthly figure for a plan
// total: total / (durationDays / 30), rounded to 2 decimals. Returns nil when
// durationDays is not positive; callers render nothing in that case. The
// figure never feeds back into an authoritative total.
func MonthlyAmortization(total Money, durationDays int) *decimal.Decimal {
	if durationDays <= 0 {
		return nil
	}
	months := decimal.NewFromInt(int64(durationDays)).Div(decimal.NewFromInt(30))
	if months.IsZero() {
		return nil
	}
	v := total.Amount.Div(months).Round(2)
	return &v
}
