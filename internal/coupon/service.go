package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-bazaar/internal/cache"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

// ErrInvalidInput is returned when an admin payload fails validation.
var ErrInvalidInput = errors.New("invalid coupon input")

// Querier is the persistence surface the coupon service needs.
type Querier interface {
	ListCoupons(ctx context.Context) ([]store.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (store.Coupon, error)
	ListCouponUsageByUser(ctx context.Context, userID pgtype.UUID) ([]store.CouponUsage, error)
	CreateCoupon(ctx context.Context, arg store.CreateCouponParams) (store.Coupon, error)
	UpdateCoupon(ctx context.Context, arg store.UpdateCouponParams) (store.Coupon, error)
}

// Service exposes coupon browsing, redeem previews, and administration over
// the store. Redemption itself (counter movement) belongs to checkout.
type Service struct {
	Q                   Querier
	Cache               *cache.Cache
	CacheTTL            time.Duration
	Currency            string
	PerUserLimitDefault int32
	Now                 func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// FromRow maps a coupon row into the domain rule, applying the service-wide
// per-user default when the row leaves the limit unset.
func (s *Service) FromRow(row store.Coupon) Coupon {
	c := Coupon{
		Code:           row.Code,
		Kind:           Kind(row.Kind),
		Value:          money.New(row.Value, s.Currency),
		MinSpend:       money.New(row.MinSpend, s.Currency),
		AssignedEmails: row.AssignedEmails,
		Active:         row.Active,
	}
	if row.ID.Valid {
		c.ID = uuid.UUID(row.ID.Bytes)
	}
	if row.PercentBps.Valid {
		c.PercentBps = row.PercentBps.Int32
	}
	if row.ExpiresAt.Valid {
		t := row.ExpiresAt.Time
		c.ExpiresAt = &t
	}
	switch {
	case row.PerUserLimit.Valid:
		limit := row.PerUserLimit.Int32
		c.PerUserLimit = &limit
	case s.PerUserLimitDefault > 0:
		limit := s.PerUserLimitDefault
		c.PerUserLimit = &limit
	}
	return c
}

// UsageFromRows maps counter rows into resolver records.
func UsageFromRows(rows []store.CouponUsage) []UsageRecord {
	out := make([]UsageRecord, 0, len(rows))
	for _, r := range rows {
		rec := UsageRecord{UsedCount: r.UsedCount}
		if r.CouponID.Valid {
			rec.CouponID = uuid.UUID(r.CouponID.Bytes)
		}
		if r.UserID.Valid {
			rec.UserID = uuid.UUID(r.UserID.Bytes)
		}
		out = append(out, rec)
	}
	return out
}

// Browse returns the coupons the user may currently see.
func (s *Service) Browse(ctx context.Context, user User) (Visible, error) {
	if s == nil || s.Q == nil {
		return Visible{}, errors.New("coupon service not configured")
	}
	coupons, err := s.loadCoupons(ctx)
	if err != nil {
		return Visible{}, err
	}
	usage, err := s.loadUsage(ctx, user.ID)
	if err != nil {
		return Visible{}, err
	}
	return VisibleCoupons(user, coupons, usage, s.now()), nil
}

// RedeemPreview resolves a code against the live subtotal without moving any
// usage counter. Checkout repeats the resolution inside its transaction.
func (s *Service) RedeemPreview(ctx context.Context, code string, user User, subtotal money.Money) (Coupon, error) {
	if s == nil || s.Q == nil {
		return Coupon{}, errors.New("coupon service not configured")
	}
	coupons, err := s.loadCoupons(ctx)
	if err != nil {
		return Coupon{}, err
	}
	usage, err := s.loadUsage(ctx, user.ID)
	if err != nil {
		return Coupon{}, err
	}
	return Redeem(code, user, subtotal, coupons, usage, s.now())
}

// Lookup loads a single coupon rule by code.
func (s *Service) Lookup(ctx context.Context, code string) (Coupon, error) {
	if s == nil || s.Q == nil {
		return Coupon{}, errors.New("coupon service not configured")
	}
	row, err := s.Q.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, err
	}
	return s.FromRow(row), nil
}

// Definition is the admin-facing coupon payload.
type Definition struct {
	Code           string     `json:"code" validate:"required,min=2,max=32"`
	Kind           string     `json:"kind" validate:"required,oneof=percent fixed_amount"`
	PercentBps     int32      `json:"percent_bps" validate:"min=0,max=10000"`
	Value          int64      `json:"value" validate:"min=0"`
	MinSpend       int64      `json:"min_spend" validate:"min=0"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PerUserLimit   *int32     `json:"per_user_limit,omitempty"`
	AssignedEmails []string   `json:"assigned_emails,omitempty" validate:"dive,email"`
	Active         bool       `json:"active"`
}

// Create stores a new coupon rule.
func (s *Service) Create(ctx context.Context, def Definition) (Coupon, error) {
	if s == nil || s.Q == nil {
		return Coupon{}, errors.New("coupon service not configured")
	}
	params, err := s.toParams(def)
	if err != nil {
		return Coupon{}, err
	}
	row, err := s.Q.CreateCoupon(ctx, params)
	if err != nil {
		return Coupon{}, err
	}
	s.Cache.Invalidate(ctx, cache.KeyCouponList)
	return s.FromRow(row), nil
}

// Update rewrites an existing coupon rule identified by its code.
func (s *Service) Update(ctx context.Context, def Definition) (Coupon, error) {
	if s == nil || s.Q == nil {
		return Coupon{}, errors.New("coupon service not configured")
	}
	params, err := s.toParams(def)
	if err != nil {
		return Coupon{}, err
	}
	row, err := s.Q.UpdateCoupon(ctx, store.UpdateCouponParams(params))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, err
	}
	s.Cache.Invalidate(ctx, cache.KeyCouponList)
	return s.FromRow(row), nil
}

// ListAll returns every rule for the admin screens, ignoring visibility.
func (s *Service) ListAll(ctx context.Context) ([]Coupon, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("coupon service not configured")
	}
	rows, err := s.Q.ListCoupons(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.FromRow(row))
	}
	return out, nil
}

func (s *Service) toParams(def Definition) (store.CreateCouponParams, error) {
	code := NormalizeCode(def.Code)
	if code == "" {
		return store.CreateCouponParams{}, fmt.Errorf("code required: %w", ErrInvalidInput)
	}
	switch Kind(def.Kind) {
	case KindPercent:
		if def.PercentBps <= 0 || def.PercentBps > 10000 {
			return store.CreateCouponParams{}, fmt.Errorf("percent_bps must be in (0, 10000]: %w", ErrInvalidInput)
		}
	case KindFixedAmount:
		if def.Value <= 0 {
			return store.CreateCouponParams{}, fmt.Errorf("value must be positive: %w", ErrInvalidInput)
		}
	default:
		return store.CreateCouponParams{}, fmt.Errorf("unknown kind %q: %w", def.Kind, ErrInvalidInput)
	}
	emails := make([]string, 0, len(def.AssignedEmails))
	for _, e := range def.AssignedEmails {
		if n := NormalizeEmail(e); n != "" {
			emails = append(emails, n)
		}
	}
	params := store.CreateCouponParams{
		Code:           code,
		Kind:           def.Kind,
		Value:          def.Value,
		MinSpend:       def.MinSpend,
		AssignedEmails: emails,
		Active:         def.Active,
	}
	if def.PercentBps > 0 {
		params.PercentBps = pgtype.Int4{Int32: def.PercentBps, Valid: true}
	}
	if def.ExpiresAt != nil {
		params.ExpiresAt = pgtype.Timestamptz{Time: *def.ExpiresAt, Valid: true}
	}
	if def.PerUserLimit != nil {
		params.PerUserLimit = pgtype.Int4{Int32: *def.PerUserLimit, Valid: true}
	}
	return params, nil
}

type cachedCoupons struct {
	Rows []store.Coupon `json:"rows"`
}

func (s *Service) loadCoupons(ctx context.Context) ([]Coupon, error) {
	var payload cachedCoupons
	if !s.Cache.Get(ctx, cache.KeyCouponList, &payload) {
		rows, err := s.Q.ListCoupons(ctx)
		if err != nil {
			return nil, err
		}
		payload.Rows = rows
		s.Cache.Set(ctx, cache.KeyCouponList, payload, s.CacheTTL)
	}
	out := make([]Coupon, 0, len(payload.Rows))
	for _, row := range payload.Rows {
		out = append(out, s.FromRow(row))
	}
	return out, nil
}

func (s *Service) loadUsage(ctx context.Context, userID uuid.UUID) ([]UsageRecord, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var pgID pgtype.UUID
	pgID.Bytes = userID
	pgID.Valid = true
	rows, err := s.Q.ListCouponUsageByUser(ctx, pgID)
	if err != nil {
		return nil, err
	}
	return UsageFromRows(rows), nil
}
