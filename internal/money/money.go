package money

import "fmt"

// Money is a monetary value in integer minor units tagged with an ISO 4217
// currency code. Amounts never pass through binary floats; every operation
// stays in minor units until display formatting.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns the zero value for the given currency.
func Zero(currency string) Money {
	return Money{Currency: currency}
}

// Add returns m + o. Mixing currencies is a programming error and panics.
func (m Money) Add(o Money) Money {
	c := mustSameCurrency(m, o)
	return Money{Amount: m.Amount + o.Amount, Currency: c}
}

// Sub returns m - o clamped at zero. The second return reports whether the
// clamp fired, so callers can observe (and test) that a negative result was
// replaced rather than silently discarded.
func (m Money) Sub(o Money) (Money, bool) {
	c := mustSameCurrency(m, o)
	out := m.Amount - o.Amount
	if out < 0 {
		return Money{Currency: c}, true
	}
	return Money{Amount: out, Currency: c}, false
}

// MulQty returns m multiplied by a line-item quantity.
func (m Money) MulQty(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// PercentOf applies a rate expressed in basis points and rounds half up to
// the nearest minor unit. Round half up is the documented policy; banker's
// rounding is deliberately not used.
func (m Money) PercentOf(bps int64) Money {
	if m.Amount <= 0 || bps <= 0 {
		return Money{Currency: m.Currency}
	}
	return Money{Amount: (m.Amount*bps + 5000) / 10000, Currency: m.Currency}
}

// Cmp compares two amounts: -1 when m < o, 0 when equal, +1 when m > o.
func (m Money) Cmp(o Money) int {
	mustSameCurrency(m, o)
	switch {
	case m.Amount < o.Amount:
		return -1
	case m.Amount > o.Amount:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// Min returns the smaller of the two amounts.
func Min(a, b Money) Money {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func mustSameCurrency(a, b Money) string {
	switch {
	case a.Currency == b.Currency:
		return a.Currency
	case a.Currency == "":
		return b.Currency
	case b.Currency == "":
		return a.Currency
	default:
		panic(fmt.Sprintf("money: currency mismatch %s vs %s", a.Currency, b.Currency))
	}
}
