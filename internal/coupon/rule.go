package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

var (
	// ErrNotFound is returned when no coupon matches the supplied code.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotAssigned is returned when a user-restricted coupon is redeemed by an email outside its assignment set.
	ErrNotAssigned = errors.New("coupon not assigned to user")
	// ErrInactive is returned when the coupon has been disabled by an administrator.
	ErrInactive = errors.New("coupon not active")
	// ErrExpired is returned when the coupon's expiry instant has been reached.
	ErrExpired = errors.New("coupon expired")
	// ErrBelowMinimumOrder indicates the cart subtotal did not meet the coupon requirement.
	ErrBelowMinimumOrder = errors.New("minimum order amount not met")
	// ErrUsageExceeded indicates the caller has exhausted the per-user allowance.
	ErrUsageExceeded = errors.New("coupon usage limit reached")
)

// Kind discriminates how a coupon's discount is computed.
type Kind string

const (
	// KindPercent discounts a percentage of the subtotal, carried in basis points.
	KindPercent Kind = "percent"
	// KindFixedAmount discounts a fixed amount of minor units.
	KindFixedAmount Kind = "fixed_amount"
)

// Coupon captures an administrator-defined discount rule. The pricing path
// never mutates a coupon; only usage counters (stored separately) change,
// and only at order confirmation.
type Coupon struct {
	ID             uuid.UUID
	Code           string
	Kind           Kind
	PercentBps     int32
	Value          money.Money
	MinSpend       money.Money
	ExpiresAt      *time.Time
	PerUserLimit   *int32
	AssignedEmails []string
	Active         bool
}

// Restricted reports whether the coupon is limited to assigned emails.
// A nil/empty assignment set means the coupon belongs to the general pool.
func (c Coupon) Restricted() bool { return len(c.AssignedEmails) > 0 }

// AssignedTo reports whether the email is in the assignment set. Matching is
// trimmed and case-insensitive because assignments are entered as free text.
func (c Coupon) AssignedTo(email string) bool {
	want := NormalizeEmail(email)
	if want == "" {
		return false
	}
	for _, assigned := range c.AssignedEmails {
		if NormalizeEmail(assigned) == want {
			return true
		}
	}
	return false
}

// Validate checks the coupon against the live subtotal at the given instant.
// Checks run in a fixed order so the first failure is the one reported:
// active, expiry, then minimum spend. A coupon expiring exactly at now is
// already expired (strict inequality).
func (c Coupon) Validate(now time.Time, subtotal money.Money) error {
	if !c.Active {
		return ErrInactive
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return ErrExpired
	}
	if subtotal.Cmp(c.MinSpend) < 0 {
		return ErrBelowMinimumOrder
	}
	return nil
}

// Discount computes the discount amount against the subtotal. The result
// never exceeds the subtotal, so a post-discount subtotal cannot go negative.
func (c Coupon) Discount(subtotal money.Money) money.Money {
	if subtotal.Amount <= 0 {
		return money.Zero(subtotal.Currency)
	}
	var d money.Money
	switch c.Kind {
	case KindPercent:
		d = subtotal.PercentOf(int64(c.PercentBps))
	case KindFixedAmount:
		d = money.New(c.Value.Amount, subtotal.Currency)
	default:
		return money.Zero(subtotal.Currency)
	}
	return money.Min(d, subtotal)
}

// NormalizeCode canonicalises a coupon code for case-insensitive lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeEmail canonicalises an email for assignment-set membership tests.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
