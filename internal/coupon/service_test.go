package coupon_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/coupon"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

var serviceNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type stubQuerier struct {
	coupons []store.Coupon
	usage   []store.CouponUsage
}

func (s *stubQuerier) ListCoupons(context.Context) ([]store.Coupon, error) { return s.coupons, nil }

func (s *stubQuerier) GetCouponByCode(_ context.Context, code string) (store.Coupon, error) {
	want := coupon.NormalizeCode(code)
	for _, c := range s.coupons {
		if c.Code == want {
			return c, nil
		}
	}
	return store.Coupon{}, pgx.ErrNoRows
}

func (s *stubQuerier) ListCouponUsageByUser(_ context.Context, userID pgtype.UUID) ([]store.CouponUsage, error) {
	var out []store.CouponUsage
	for _, u := range s.usage {
		if u.UserID.Bytes == userID.Bytes {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubQuerier) CreateCoupon(_ context.Context, arg store.CreateCouponParams) (store.Coupon, error) {
	var id pgtype.UUID
	id.Bytes = uuid.New()
	id.Valid = true
	c := store.Coupon{
		ID: id, Code: arg.Code, Kind: arg.Kind, PercentBps: arg.PercentBps,
		Value: arg.Value, MinSpend: arg.MinSpend, ExpiresAt: arg.ExpiresAt,
		PerUserLimit: arg.PerUserLimit, AssignedEmails: arg.AssignedEmails, Active: arg.Active,
	}
	s.coupons = append(s.coupons, c)
	return c, nil
}

func (s *stubQuerier) UpdateCoupon(_ context.Context, arg store.UpdateCouponParams) (store.Coupon, error) {
	for i, c := range s.coupons {
		if c.Code == coupon.NormalizeCode(arg.Code) {
			c.Active = arg.Active
			c.MinSpend = arg.MinSpend
			s.coupons[i] = c
			return c, nil
		}
	}
	return store.Coupon{}, pgx.ErrNoRows
}

func newCouponService(q *stubQuerier) *coupon.Service {
	return &coupon.Service{
		Q:        q,
		Currency: "INR",
		Now:      func() time.Time { return serviceNow },
	}
}

func TestFromRowAppliesDefaultLimit(t *testing.T) {
	svc := newCouponService(&stubQuerier{})
	svc.PerUserLimitDefault = 2

	c := svc.FromRow(store.Coupon{Code: "SAVE20", Kind: "percent", PercentBps: pgtype.Int4{Int32: 2000, Valid: true}, Active: true})
	require.NotNil(t, c.PerUserLimit)
	require.EqualValues(t, 2, *c.PerUserLimit)

	explicit := svc.FromRow(store.Coupon{Code: "VIP", Kind: "percent", PerUserLimit: pgtype.Int4{Int32: 5, Valid: true}})
	require.NotNil(t, explicit.PerUserLimit)
	require.EqualValues(t, 5, *explicit.PerUserLimit)
}

func TestBrowsePartitionsGeneralAndPersonal(t *testing.T) {
	q := &stubQuerier{}
	svc := newCouponService(q)
	ctx := context.Background()

	_, err := svc.Create(ctx, coupon.Definition{Code: "SAVE20", Kind: "percent", PercentBps: 2000, Active: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, coupon.Definition{
		Code: "VIP50", Kind: "percent", PercentBps: 5000, Active: true,
		AssignedEmails: []string{"Priya@Example.com"},
	})
	require.NoError(t, err)

	visible, err := svc.Browse(ctx, coupon.User{ID: uuid.New(), Email: "priya@example.com"})
	require.NoError(t, err)
	require.Len(t, visible.General, 1)
	require.Len(t, visible.Personal, 1)

	other, err := svc.Browse(ctx, coupon.User{ID: uuid.New(), Email: "someone@else.com"})
	require.NoError(t, err)
	require.Len(t, other.General, 1)
	require.Empty(t, other.Personal)
}

func TestRedeemPreviewDoesNotTouchUsage(t *testing.T) {
	q := &stubQuerier{}
	svc := newCouponService(q)
	ctx := context.Background()

	_, err := svc.Create(ctx, coupon.Definition{Code: "SAVE20", Kind: "percent", PercentBps: 2000, Active: true})
	require.NoError(t, err)

	user := coupon.User{ID: uuid.New()}
	subtotal := money.New(100_000, "INR")
	for i := 0; i < 3; i++ {
		applied, err := svc.RedeemPreview(ctx, "save20", user, subtotal)
		require.NoError(t, err)
		require.EqualValues(t, 20_000, applied.Discount(subtotal).Amount)
	}
	require.Empty(t, q.usage)
}

func TestCreateRejectsBadDefinitions(t *testing.T) {
	svc := newCouponService(&stubQuerier{})
	ctx := context.Background()

	cases := []coupon.Definition{
		{Code: "", Kind: "percent", PercentBps: 1000},
		{Code: "X", Kind: "bogus"},
		{Code: "X", Kind: "percent", PercentBps: 0},
		{Code: "X", Kind: "percent", PercentBps: 10001},
		{Code: "X", Kind: "fixed_amount", Value: 0},
	}
	for _, def := range cases {
		_, err := svc.Create(ctx, def)
		require.ErrorIs(t, err, coupon.ErrInvalidInput)
	}
}

func TestUpdateUnknownCode(t *testing.T) {
	svc := newCouponService(&stubQuerier{})
	_, err := svc.Update(context.Background(), coupon.Definition{Code: "GHOST", Kind: "percent", PercentBps: 1000})
	require.ErrorIs(t, err, coupon.ErrNotFound)
}
