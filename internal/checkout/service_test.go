package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/cart"
	"github.com/noah-isme/backend-bazaar/internal/checkout"
	"github.com/noah-isme/backend-bazaar/internal/coupon"
	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/shipping"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type stubStore struct {
	mu sync.Mutex

	carts   map[string]store.Cart
	items   map[string][]store.CartItem
	coupons map[string]store.Coupon
	usage   map[string]int32

	zones   []store.ShippingZone
	methods map[string][]store.ShippingMethod

	// hideUsage makes eligibility reads miss the counter, as when another
	// transaction commits between the read and the increment.
	hideUsage bool

	orders     []store.Order
	orderItems []store.OrderItem
	evts       []store.DomainEvent
}

func newStubStore() *stubStore {
	return &stubStore{
		carts:   map[string]store.Cart{},
		items:   map[string][]store.CartItem{},
		coupons: map[string]store.Coupon{},
		usage:   map[string]int32{},
		methods: map[string][]store.ShippingMethod{},
	}
}

func pgID() pgtype.UUID {
	var id pgtype.UUID
	id.Bytes = uuid.New()
	id.Valid = true
	return id
}

func idKey(id pgtype.UUID) string { return uuid.UUID(id.Bytes).String() }

func (s *stubStore) GetCartByID(_ context.Context, id pgtype.UUID) (store.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[idKey(id)]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *stubStore) ListCartItems(_ context.Context, cartID pgtype.UUID) ([]store.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[idKey(cartID)], nil
}

func (s *stubStore) GetCouponByCode(_ context.Context, code string) (store.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return store.Coupon{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *stubStore) ListCouponUsageByUser(_ context.Context, userID pgtype.UUID) ([]store.CouponUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hideUsage {
		return nil, nil
	}
	var out []store.CouponUsage
	for _, c := range s.coupons {
		key := idKey(c.ID) + "|" + idKey(userID)
		if n, ok := s.usage[key]; ok {
			out = append(out, store.CouponUsage{CouponID: c.ID, UserID: userID, UsedCount: n})
		}
	}
	return out, nil
}

func (s *stubStore) TryIncrementCouponUsage(_ context.Context, arg store.TryIncrementCouponUsageParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := idKey(arg.CouponID) + "|" + idKey(arg.UserID)
	if arg.PerUserLimit > 0 && s.usage[key] >= arg.PerUserLimit {
		return false, nil
	}
	s.usage[key]++
	return true, nil
}

func (s *stubStore) CreateOrder(_ context.Context, arg store.CreateOrderParams) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := store.Order{
		ID:             pgID(),
		UserID:         arg.UserID,
		CartID:         arg.CartID,
		Status:         arg.Status,
		Currency:       arg.Currency,
		Subtotal:       arg.Subtotal,
		Discount:       arg.Discount,
		Shipping:       arg.Shipping,
		Tax:            arg.Tax,
		Total:          arg.Total,
		CouponCode:     arg.CouponCode,
		Destination:    arg.Destination,
		ShippingMethod: arg.ShippingMethod,
	}
	s.orders = append(s.orders, o)
	return o, nil
}

func (s *stubStore) CreateOrderItem(_ context.Context, arg store.CreateOrderItemParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderItems = append(s.orderItems, store.OrderItem{
		ID:        pgID(),
		OrderID:   arg.OrderID,
		ProductID: arg.ProductID,
		Title:     arg.Title,
		Slug:      arg.Slug,
		Qty:       arg.Qty,
		UnitPrice: arg.UnitPrice,
		Subtotal:  arg.Subtotal,
	})
	return nil
}

func (s *stubStore) UpdateCartCoupon(_ context.Context, arg store.UpdateCartCouponParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[idKey(arg.ID)]
	if !ok {
		return pgx.ErrNoRows
	}
	c.AppliedCouponCode = arg.AppliedCouponCode
	s.carts[idKey(arg.ID)] = c
	return nil
}

func (s *stubStore) TouchCart(_ context.Context, arg store.TouchCartParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[idKey(arg.ID)]
	if !ok {
		return pgx.ErrNoRows
	}
	c.ExpiresAt = arg.ExpiresAt
	s.carts[idKey(arg.ID)] = c
	return nil
}

func (s *stubStore) InsertDomainEvent(_ context.Context, arg store.InsertDomainEventParams) (store.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := store.DomainEvent{ID: pgID(), Topic: arg.Topic, AggregateID: arg.AggregateID, Payload: arg.Payload}
	s.evts = append(s.evts, ev)
	return ev, nil
}

func (s *stubStore) ListShippingZones(_ context.Context) ([]store.ShippingZone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zones, nil
}

func (s *stubStore) ListShippingMethodsByZone(_ context.Context, zoneID pgtype.UUID) ([]store.ShippingMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.methods[idKey(zoneID)], nil
}

type stubRunner struct{ store *stubStore }

func (r stubRunner) RunInTx(_ context.Context, fn func(q checkout.Querier) error) error {
	return fn(r.store)
}

type fixture struct {
	store  *stubStore
	svc    *checkout.Service
	userID pgtype.UUID
	cartID pgtype.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newStubStore()

	userID := pgID()
	cartID := pgID()
	st.carts[idKey(cartID)] = store.Cart{ID: cartID, UserID: userID}
	st.items[idKey(cartID)] = []store.CartItem{{
		ID:        pgID(),
		CartID:    cartID,
		ProductID: pgID(),
		Title:     "Steel Water Bottle",
		Slug:      "steel-water-bottle",
		Qty:       2,
		UnitPrice: 50_000,
		Subtotal:  100_000,
	}}

	zoneID := pgID()
	st.zones = []store.ShippingZone{{ID: zoneID, Name: "South", PostalPrefixes: []string{"56"}}}
	st.methods[idKey(zoneID)] = []store.ShippingMethod{
		{ID: "express", ZoneID: zoneID, Name: "Express", BaseCost: 25_000, ETADays: 1, Position: 0},
		{ID: "standard", ZoneID: zoneID, Name: "Standard", BaseCost: 10_000, ETADays: 4, Position: 1},
	}

	svc := &checkout.Service{
		Runner:   stubRunner{store: st},
		Shipping: &shipping.Service{Q: st, Currency: "INR"},
		Coupons:  &coupon.Service{Currency: "INR"},
		Events:   &events.Bus{Store: st},
		TaxBps:   1800,
		Currency: "INR",
		Now:      func() time.Time { return testNow },
	}
	return &fixture{store: st, svc: svc, userID: userID, cartID: cartID}
}

func (f *fixture) addCoupon(code string, limit int32) store.Coupon {
	c := store.Coupon{
		ID:           pgID(),
		Code:         code,
		Kind:         string(coupon.KindPercent),
		PercentBps:   pgtype.Int4{Int32: 2000, Valid: true},
		PerUserLimit: pgtype.Int4{Int32: limit, Valid: true},
		Active:       true,
	}
	f.store.coupons[code] = c
	return c
}

func (f *fixture) applyCoupon(code string) {
	c := f.store.carts[idKey(f.cartID)]
	c.AppliedCouponCode = pgtype.Text{String: code, Valid: true}
	f.store.carts[idKey(f.cartID)] = c
}

func confirmInput(f *fixture) checkout.Input {
	return checkout.Input{
		CartID:      cart.UUIDString(f.cartID),
		Destination: "560001",
		MethodID:    "standard",
	}
}

func TestConfirmBreakdown(t *testing.T) {
	f := newFixture(t)
	f.addCoupon("SAVE20", 5)
	f.applyCoupon("SAVE20")

	out, err := f.svc.Confirm(context.Background(), cart.UUIDString(f.userID), coupon.User{ID: uuid.UUID(f.userID.Bytes)}, confirmInput(f))
	require.NoError(t, err)
	require.Equal(t, "CONFIRMED", out.Status)
	require.Equal(t, int64(100_000), out.Breakdown.Subtotal.Amount)
	require.Equal(t, int64(20_000), out.Breakdown.Discount.Amount)
	require.Equal(t, int64(10_000), out.Breakdown.Shipping.Amount)
	require.Equal(t, int64(14_400), out.Breakdown.Tax.Amount)
	require.Equal(t, int64(104_400), out.Breakdown.Total.Amount)
	require.Equal(t, "SAVE20", out.Breakdown.CouponCode)

	require.Len(t, f.store.orders, 1)
	require.Len(t, f.store.orderItems, 1)
	require.Equal(t, int32(2), f.store.orderItems[0].Qty)

	cartRow := f.store.carts[idKey(f.cartID)]
	require.False(t, cartRow.AppliedCouponCode.Valid)
	require.True(t, cartRow.ExpiresAt.Valid)
	require.Equal(t, testNow, cartRow.ExpiresAt.Time)

	require.Len(t, f.store.evts, 1)
	require.Equal(t, events.TopicOrderCreated, f.store.evts[0].Topic)
}

func TestConfirmWithoutCoupon(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Confirm(context.Background(), cart.UUIDString(f.userID), coupon.User{}, confirmInput(f))
	require.NoError(t, err)
	require.Equal(t, int64(0), out.Breakdown.Discount.Amount)
	require.Equal(t, int64(18_000), out.Breakdown.Tax.Amount)
	require.Equal(t, int64(100_000+10_000+18_000), out.Breakdown.Total.Amount)
	require.Empty(t, f.store.usage)
}

func TestConfirmEmptyCart(t *testing.T) {
	f := newFixture(t)
	f.store.items[idKey(f.cartID)] = nil

	_, err := f.svc.Confirm(context.Background(), cart.UUIDString(f.userID), coupon.User{}, confirmInput(f))
	require.ErrorIs(t, err, checkout.ErrCartEmpty)
	require.Empty(t, f.store.orders)
}

func TestConfirmCartNotOwned(t *testing.T) {
	f := newFixture(t)

	other := pgID()
	_, err := f.svc.Confirm(context.Background(), cart.UUIDString(other), coupon.User{}, confirmInput(f))
	require.ErrorIs(t, err, checkout.ErrCartNotOwned)
}

func TestConfirmUnknownMethod(t *testing.T) {
	f := newFixture(t)

	in := confirmInput(f)
	in.MethodID = "drone"
	_, err := f.svc.Confirm(context.Background(), cart.UUIDString(f.userID), coupon.User{}, in)
	require.ErrorIs(t, err, checkout.ErrNoShippingMethod)
}

func TestConfirmUnresolvedDestination(t *testing.T) {
	f := newFixture(t)

	in := confirmInput(f)
	in.Destination = "999999"
	_, err := f.svc.Confirm(context.Background(), cart.UUIDString(f.userID), coupon.User{}, in)
	require.ErrorIs(t, err, shipping.ErrUnresolvedDestination)
}

func TestConfirmExhaustedCouponFailsLate(t *testing.T) {
	f := newFixture(t)
	c := f.addCoupon("SAVE20", 1)
	f.applyCoupon("SAVE20")

	// The eligibility read sees headroom, but the conditional increment
	// finds the counter already at the limit.
	f.store.usage[idKey(c.ID)+"|"+idKey(f.userID)] = 1
	f.store.hideUsage = true

	_, err := f.svc.Confirm(context.Background(), cart.UUIDString(f.userID), coupon.User{ID: uuid.UUID(f.userID.Bytes)}, confirmInput(f))
	require.ErrorIs(t, err, coupon.ErrUsageExceeded)
	require.Empty(t, f.store.orders)
}

func TestConfirmConcurrentRedemption(t *testing.T) {
	f := newFixture(t)
	f.addCoupon("SAVE20", 1)
	f.applyCoupon("SAVE20")

	// A second cart for the same user racing on the same single-use coupon.
	cart2 := pgID()
	f.store.carts[idKey(cart2)] = store.Cart{
		ID:                cart2,
		UserID:            f.userID,
		AppliedCouponCode: pgtype.Text{String: "SAVE20", Valid: true},
	}
	f.store.items[idKey(cart2)] = []store.CartItem{{
		ID: pgID(), CartID: cart2, ProductID: pgID(),
		Title: "Desk Lamp", Slug: "desk-lamp", Qty: 1, UnitPrice: 100_000, Subtotal: 100_000,
	}}

	user := coupon.User{ID: uuid.UUID(f.userID.Bytes)}
	inputs := []checkout.Input{
		confirmInput(f),
		{CartID: cart.UUIDString(cart2), Destination: "560001", MethodID: "standard"},
	}

	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in checkout.Input) {
			defer wg.Done()
			_, errs[i] = f.svc.Confirm(context.Background(), cart.UUIDString(f.userID), user, in)
		}(i, in)
	}
	wg.Wait()

	var won, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, coupon.ErrUsageExceeded):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, exhausted)
	require.Len(t, f.store.orders, 1)
	require.Equal(t, int64(20_000), f.store.orders[0].Discount)
}
