package coupon

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

// User identifies a shopper for coupon resolution. Assignment matching is by
// email, not by id, because administrators assign coupons as free-text email
// lists.
type User struct {
	ID    uuid.UUID
	Email string
}

// UsageRecord is the per-(user, coupon) redemption counter. The resolver
// only ever reads it; incrementing happens at order confirmation through an
// atomic conditional update in the persistence layer.
type UsageRecord struct {
	UserID    uuid.UUID
	CouponID  uuid.UUID
	UsedCount int32
}

// Visible partitions the coupons a user may currently browse.
type Visible struct {
	General  []Coupon `json:"general"`
	Personal []Coupon `json:"personal"`
}

// VisibleCoupons returns the coupons the user can currently see. Visibility
// is a stricter gate than redemption eligibility: inactive, expired or
// usage-capped coupons are removed entirely, while the subtotal-dependent
// minimum-spend check is deferred to redeem time because the cart may change
// after the list was fetched.
func VisibleCoupons(user User, coupons []Coupon, usage []UsageRecord, now time.Time) Visible {
	counts := usageIndex(usage, user.ID)
	out := Visible{General: []Coupon{}, Personal: []Coupon{}}
	for _, c := range coupons {
		if !c.Active {
			continue
		}
		if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
			continue
		}
		if capReached(c, counts[c.ID]) {
			continue
		}
		if c.Restricted() {
			if c.AssignedTo(user.Email) {
				out.Personal = append(out.Personal, c)
			}
			continue
		}
		out.General = append(out.General, c)
	}
	return out
}

// Redeem resolves a coupon code against the live subtotal. It is pure with
// respect to usage counters: a successful redeem reserves nothing, so an
// abandoned price preview never consumes the coupon.
func Redeem(code string, user User, subtotal money.Money, coupons []Coupon, usage []UsageRecord, now time.Time) (Coupon, error) {
	want := NormalizeCode(code)
	if want == "" {
		return Coupon{}, ErrNotFound
	}
	var (
		found Coupon
		ok    bool
	)
	for _, c := range coupons {
		if NormalizeCode(c.Code) == want {
			found = c
			ok = true
			break
		}
	}
	if !ok {
		return Coupon{}, ErrNotFound
	}
	if found.Restricted() && !found.AssignedTo(user.Email) {
		return Coupon{}, ErrNotAssigned
	}
	if err := found.Validate(now, subtotal); err != nil {
		return Coupon{}, err
	}
	if capReached(found, usedCount(usage, user.ID, found.ID)) {
		return Coupon{}, ErrUsageExceeded
	}
	return found, nil
}

func capReached(c Coupon, used int32) bool {
	return c.PerUserLimit != nil && *c.PerUserLimit > 0 && used >= *c.PerUserLimit
}

// usedCount treats a missing record as zero uses.
func usedCount(usage []UsageRecord, userID, couponID uuid.UUID) int32 {
	for _, u := range usage {
		if u.UserID == userID && u.CouponID == couponID {
			return u.UsedCount
		}
	}
	return 0
}

func usageIndex(usage []UsageRecord, userID uuid.UUID) map[uuid.UUID]int32 {
	idx := make(map[uuid.UUID]int32, len(usage))
	for _, u := range usage {
		if u.UserID == userID {
			idx[u.CouponID] = u.UsedCount
		}
	}
	return idx
}
