package pricing

import (
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/coupon"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/shipping"
)

// ErrNoShippingMethod is returned when pricing is requested for a non-empty
// cart without a selected shipping method. Callers must force a selection
// rather than assume zero-cost shipping.
var ErrNoShippingMethod = errors.New("no shipping method selected")

// Item is a cart line used for pricing. Quantity is at least 1; removal is a
// distinct cart operation, never quantity zero.
type Item struct {
	ProductID uuid.UUID
	UnitPrice money.Money
	Qty       int32
}

// Breakdown is the fully itemised result of pricing a cart at a point in
// time. It is computed, not persisted, until order creation snapshots it.
type Breakdown struct {
	Subtotal   money.Money
	Discount   money.Money
	Shipping   money.Money
	Tax        money.Money
	Total      money.Money
	CouponCode string
}

// Subtotal sums unit price times quantity over the lines. Lines with a
// non-positive quantity are skipped; they cannot exist through the cart API.
func Subtotal(items []Item, currency string) money.Money {
	sum := money.Zero(currency)
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		sum = sum.Add(it.UnitPrice.MulQty(int64(it.Qty)))
	}
	return sum
}

// Price composes line items, an optional applied coupon, the selected
// shipping quote and a flat tax rate into a Breakdown.
//
// Tax is computed on the discounted subtotal: not on shipping, and not on
// the pre-discount subtotal. That ordering is policy, not accident.
//
// Price holds no state between calls; identical inputs always produce an
// identical Breakdown, so re-invocation on every cart change is safe.
func Price(items []Item, selected *shipping.MethodQuote, applied *coupon.Coupon, taxBps int, currency string) (Breakdown, error) {
	subtotal := Subtotal(items, currency)

	if len(items) > 0 && selected == nil {
		return Breakdown{}, ErrNoShippingMethod
	}

	discount := money.Zero(currency)
	code := ""
	if applied != nil {
		discount = applied.Discount(subtotal)
		code = coupon.NormalizeCode(applied.Code)
	}

	// Discount never exceeds subtotal, so the clamp cannot fire here; Sub
	// still reports it for the pathological-input invariant tests.
	postDiscount, _ := subtotal.Sub(discount)

	shippingCost := money.Zero(currency)
	if selected != nil {
		shippingCost = money.New(selected.EffectiveCost.Amount, currency)
	}

	tax := postDiscount.PercentOf(int64(taxBps))
	total := postDiscount.Add(shippingCost).Add(tax)
	if total.Amount < 0 {
		total = money.Zero(currency)
	}

	return Breakdown{
		Subtotal:   subtotal,
		Discount:   discount,
		Shipping:   shippingCost,
		Tax:        tax,
		Total:      total,
		CouponCode: code,
	}, nil
}
