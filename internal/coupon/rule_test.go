package coupon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func inr(amount int64) money.Money { return money.New(amount, "INR") }

func TestValidateChecksInOrder(t *testing.T) {
	expired := testNow.Add(-time.Hour)
	c := Coupon{
		Active:    false,
		ExpiresAt: &expired,
		MinSpend:  inr(100_000),
	}
	// Inactive wins even though expiry and min spend also fail.
	require.ErrorIs(t, c.Validate(testNow, inr(0)), ErrInactive)

	c.Active = true
	require.ErrorIs(t, c.Validate(testNow, inr(0)), ErrExpired)

	future := testNow.Add(time.Hour)
	c.ExpiresAt = &future
	require.ErrorIs(t, c.Validate(testNow, inr(99_999)), ErrBelowMinimumOrder)
	require.NoError(t, c.Validate(testNow, inr(100_000)))
}

func TestValidateExpiryBoundaryIsStrict(t *testing.T) {
	at := testNow
	c := Coupon{Active: true, ExpiresAt: &at, MinSpend: inr(0)}
	// Expiring exactly at now means expired.
	require.ErrorIs(t, c.Validate(testNow, inr(1)), ErrExpired)
	require.NoError(t, c.Validate(testNow.Add(-time.Nanosecond), inr(1)))
}

func TestValidateNoExpiryNeverExpires(t *testing.T) {
	c := Coupon{Active: true}
	require.NoError(t, c.Validate(testNow.AddDate(10, 0, 0), inr(0)))
}

func TestDiscountPercent(t *testing.T) {
	c := Coupon{Kind: KindPercent, PercentBps: 2000}
	require.Equal(t, int64(20_000), c.Discount(inr(100_000)).Amount)
	require.Equal(t, "INR", c.Discount(inr(100_000)).Currency)
}

func TestDiscountPercentClampedToSubtotal(t *testing.T) {
	c := Coupon{Kind: KindPercent, PercentBps: 15000} // 150%
	require.Equal(t, int64(100), c.Discount(inr(100)).Amount)
}

func TestDiscountFixedAmountClampedToSubtotal(t *testing.T) {
	c := Coupon{Kind: KindFixedAmount, Value: inr(200_000)}
	require.Equal(t, int64(100_000), c.Discount(inr(100_000)).Amount)
	require.Equal(t, int64(50), c.Discount(inr(50)).Amount)
}

func TestDiscountZeroSubtotal(t *testing.T) {
	c := Coupon{Kind: KindFixedAmount, Value: inr(500)}
	require.True(t, c.Discount(inr(0)).IsZero())
}

func TestAssignedToIsCaseInsensitiveAndTrimmed(t *testing.T) {
	c := Coupon{AssignedEmails: []string{" Jo@X.com ", "priya@example.com"}}
	require.True(t, c.AssignedTo("jo@x.com"))
	require.True(t, c.AssignedTo("JO@X.COM "))
	require.True(t, c.AssignedTo("Priya@Example.Com"))
	require.False(t, c.AssignedTo("jo@y.com"))
	require.False(t, c.AssignedTo(""))
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "SAVE20", NormalizeCode("  save20 "))
}
