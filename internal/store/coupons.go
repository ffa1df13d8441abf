package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const couponColumns = `id, code, kind, percent_bps, value, min_spend, expires_at,
	per_user_limit, assigned_emails, active, created_at, updated_at`

func scanCoupon(row interface{ Scan(...any) error }) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &c.PercentBps, &c.Value, &c.MinSpend,
		&c.ExpiresAt, &c.PerUserLimit, &c.AssignedEmails, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCouponParams names the columns for a new coupon.
type CreateCouponParams struct {
	Code           string
	Kind           string
	PercentBps     pgtype.Int4
	Value          int64
	MinSpend       int64
	ExpiresAt      pgtype.Timestamptz
	PerUserLimit   pgtype.Int4
	AssignedEmails []string
	Active         bool
}

// CreateCoupon inserts a coupon. Codes are stored upper-cased; the unique
// index enforces case-insensitive uniqueness.
func (s *Store) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO coupons (code, kind, percent_bps, value, min_spend, expires_at, per_user_limit, assigned_emails, active)
		VALUES (upper($1), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+couponColumns,
		arg.Code, arg.Kind, arg.PercentBps, arg.Value, arg.MinSpend, arg.ExpiresAt,
		arg.PerUserLimit, arg.AssignedEmails, arg.Active)
	return scanCoupon(row)
}

// UpdateCouponParams mutates an existing coupon identified by code.
type UpdateCouponParams struct {
	Code           string
	Kind           string
	PercentBps     pgtype.Int4
	Value          int64
	MinSpend       int64
	ExpiresAt      pgtype.Timestamptz
	PerUserLimit   pgtype.Int4
	AssignedEmails []string
	Active         bool
}

// UpdateCoupon rewrites a coupon's rule columns. Usage counters live in
// coupon_usages and are untouched.
func (s *Store) UpdateCoupon(ctx context.Context, arg UpdateCouponParams) (Coupon, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE coupons SET kind = $2, percent_bps = $3, value = $4, min_spend = $5,
			expires_at = $6, per_user_limit = $7, assigned_emails = $8, active = $9,
			updated_at = now()
		WHERE code = upper($1)
		RETURNING `+couponColumns,
		arg.Code, arg.Kind, arg.PercentBps, arg.Value, arg.MinSpend, arg.ExpiresAt,
		arg.PerUserLimit, arg.AssignedEmails, arg.Active)
	return scanCoupon(row)
}

// GetCouponByCode performs a case-insensitive lookup.
func (s *Store) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	row := s.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = upper(trim($1))`, code)
	return scanCoupon(row)
}

// ListCoupons returns every coupon for the resolver and the admin screens.
// Filtering (active, expiry, visibility) happens in the domain layer.
func (s *Store) ListCoupons(ctx context.Context) ([]Coupon, error) {
	rows, err := s.db.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCouponUsageByUser returns the user's redemption counters.
func (s *Store) ListCouponUsageByUser(ctx context.Context, userID pgtype.UUID) ([]CouponUsage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT coupon_id, user_id, used_count, updated_at
		FROM coupon_usages WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CouponUsage
	for rows.Next() {
		var u CouponUsage
		if err := rows.Scan(&u.CouponID, &u.UserID, &u.UsedCount, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// TryIncrementCouponUsageParams drive the conditional counter bump.
// PerUserLimit <= 0 means the coupon is uncapped.
type TryIncrementCouponUsageParams struct {
	CouponID     pgtype.UUID
	UserID       pgtype.UUID
	PerUserLimit int32
}

// TryIncrementCouponUsage is the single atomic statement guarding the
// check-then-act race between redeem pre-check and confirmation: the counter
// only moves while it is still below the cap, in one round trip. It reports
// false when the cap was already reached, which callers surface as a
// late-breaking usage-exceeded error even though their pre-check passed.
func (s *Store) TryIncrementCouponUsage(ctx context.Context, arg TryIncrementCouponUsageParams) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO coupon_usages (coupon_id, user_id, used_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (coupon_id, user_id) DO UPDATE
		SET used_count = coupon_usages.used_count + 1, updated_at = now()
		WHERE $3 <= 0 OR coupon_usages.used_count < $3`,
		arg.CouponID, arg.UserID, arg.PerUserLimit)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
