package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-bazaar/internal/cart"
	"github.com/noah-isme/backend-bazaar/internal/coupon"
	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/shipping"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

var (
	// ErrCartEmpty is returned when confirming a cart with no lines.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCartNotOwned is returned when the cart belongs to another user.
	ErrCartNotOwned = errors.New("cart does not belong to user")
	// ErrNoShippingMethod is returned when the requested method is not
	// offered for the destination's zone.
	ErrNoShippingMethod = errors.New("shipping method not available for destination")
)

// Querier is the transactional persistence surface checkout needs.
type Querier interface {
	GetCartByID(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	GetCouponByCode(ctx context.Context, code string) (store.Coupon, error)
	ListCouponUsageByUser(ctx context.Context, userID pgtype.UUID) ([]store.CouponUsage, error)
	TryIncrementCouponUsage(ctx context.Context, arg store.TryIncrementCouponUsageParams) (bool, error)
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	CreateOrderItem(ctx context.Context, arg store.CreateOrderItemParams) error
	UpdateCartCoupon(ctx context.Context, arg store.UpdateCartCouponParams) error
	TouchCart(ctx context.Context, arg store.TouchCartParams) error
	InsertDomainEvent(ctx context.Context, arg store.InsertDomainEventParams) (store.DomainEvent, error)
}

// TxRunner executes fn against a transaction-scoped querier. The whole
// confirmation, usage counter included, commits or rolls back as one unit.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(q Querier) error) error
}

// PoolRunner is the production TxRunner over a pgx pool.
type PoolRunner struct {
	Pool  *pgxpool.Pool
	Store *store.Store
}

func (r PoolRunner) RunInTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(r.Store.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Input is the confirmation request.
type Input struct {
	CartID      string `json:"cartId"`
	Destination string `json:"destination"`
	MethodID    string `json:"methodId"`
}

// Output is the confirmation result with the order's frozen price breakdown.
type Output struct {
	OrderID   string            `json:"orderId"`
	Status    string            `json:"status"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// Service confirms carts into orders.
type Service struct {
	Runner   TxRunner
	Shipping *shipping.Service
	Coupons  *coupon.Service
	Events   *events.Bus
	TaxBps   int
	Currency string
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Confirm turns the cart into an order. The applied coupon is re-resolved
// against the live subtotal inside the transaction, and its usage counter
// moves through a conditional increment, so two racing confirmations of a
// nearly exhausted coupon cannot both win.
func (s *Service) Confirm(ctx context.Context, userID string, user coupon.User, in Input) (Output, error) {
	if s == nil || s.Runner == nil || s.Shipping == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if userID == "" {
		return Output{}, errors.New("user is required for checkout")
	}
	if in.CartID == "" {
		return Output{}, errors.New("cartId is required")
	}
	if in.Destination == "" {
		return Output{}, errors.New("destination is required")
	}
	if in.MethodID == "" {
		return Output{}, errors.New("methodId is required")
	}
	cID, err := cart.ToUUID(in.CartID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid cart id: %w", err)
	}
	uID, err := cart.ToUUID(userID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid user id: %w", err)
	}

	var out Output
	err = s.Runner.RunInTx(ctx, func(q Querier) error {
		cartRow, err := q.GetCartByID(ctx, cID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrNotFound
			}
			return err
		}
		if cartRow.UserID.Valid && cartRow.UserID.Bytes != uID.Bytes {
			return ErrCartNotOwned
		}
		items, err := q.ListCartItems(ctx, cID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}
		pricingItems := cart.PricingItems(items, s.Currency)
		subtotal := pricing.Subtotal(pricingItems, s.Currency)

		zone, quotes, err := s.Shipping.QuoteFor(ctx, in.Destination, subtotal)
		if err != nil {
			return err
		}
		selected, ok := shipping.SelectQuote(quotes, in.MethodID)
		if !ok {
			return ErrNoShippingMethod
		}

		applied, err := s.resolveCoupon(ctx, q, cartRow, uID, user, subtotal)
		if err != nil {
			return err
		}

		breakdown, err := pricing.Price(pricingItems, &selected, applied, s.TaxBps, s.Currency)
		if err != nil {
			return err
		}

		if applied != nil {
			limit := int32(0)
			if applied.PerUserLimit != nil {
				limit = *applied.PerUserLimit
			}
			moved, err := q.TryIncrementCouponUsage(ctx, store.TryIncrementCouponUsageParams{
				CouponID:     pgUUID(applied.ID[:]),
				UserID:       uID,
				PerUserLimit: limit,
			})
			if err != nil {
				return err
			}
			if !moved {
				return coupon.ErrUsageExceeded
			}
		}

		order, err := q.CreateOrder(ctx, store.CreateOrderParams{
			UserID:         uID,
			CartID:         cID,
			Status:         "CONFIRMED",
			Currency:       s.Currency,
			Subtotal:       breakdown.Subtotal.Amount,
			Discount:       breakdown.Discount.Amount,
			Shipping:       breakdown.Shipping.Amount,
			Tax:            breakdown.Tax.Amount,
			Total:          breakdown.Total.Amount,
			CouponCode:     couponText(applied),
			Destination:    in.Destination,
			ShippingMethod: selected.Method.ID,
		})
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := q.CreateOrderItem(ctx, store.CreateOrderItemParams{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Title:     it.Title,
				Slug:      it.Slug,
				Qty:       it.Qty,
				UnitPrice: it.UnitPrice,
				Subtotal:  it.Subtotal,
			}); err != nil {
				return err
			}
		}

		// Consumed carts are cleared and expired rather than deleted so
		// the order keeps its back-reference.
		_ = q.UpdateCartCoupon(ctx, store.UpdateCartCouponParams{ID: cID})
		_ = q.TouchCart(ctx, store.TouchCartParams{ID: cID, ExpiresAt: pgtype.Timestamptz{Time: s.now(), Valid: true}})

		if s.Events != nil {
			payload := map[string]any{
				"orderId":  cart.UUIDString(order.ID),
				"userId":   userID,
				"zone":     zone.Name,
				"total":    breakdown.Total.Amount,
				"currency": breakdown.Total.Currency,
			}
			if breakdown.CouponCode != "" {
				payload["coupon"] = breakdown.CouponCode
			}
			if _, err := s.Events.EmitTx(ctx, q, events.TopicOrderCreated, order.ID, payload); err != nil {
				return err
			}
		}

		out = Output{
			OrderID:   cart.UUIDString(order.ID),
			Status:    order.Status,
			Breakdown: breakdown,
		}
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	return out, nil
}

// resolveCoupon re-runs eligibility for the cart's applied coupon inside the
// transaction. No coupon on the cart means no discount, not an error.
func (s *Service) resolveCoupon(ctx context.Context, q Querier, cartRow store.Cart, uID pgtype.UUID, user coupon.User, subtotal money.Money) (*coupon.Coupon, error) {
	if !cartRow.AppliedCouponCode.Valid || cartRow.AppliedCouponCode.String == "" {
		return nil, nil
	}
	if s.Coupons == nil {
		return nil, errors.New("checkout service not configured")
	}
	row, err := q.GetCouponByCode(ctx, cartRow.AppliedCouponCode.String)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, err
	}
	rule := s.Coupons.FromRow(row)

	rows, err := q.ListCouponUsageByUser(ctx, uID)
	if err != nil {
		return nil, err
	}
	usage := coupon.UsageFromRows(rows)
	applied, err := coupon.Redeem(rule.Code, user, subtotal, []coupon.Coupon{rule}, usage, s.now())
	if err != nil {
		return nil, err
	}
	return &applied, nil
}

func couponText(applied *coupon.Coupon) pgtype.Text {
	if applied == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: applied.Code, Valid: true}
}

func pgUUID(b []byte) pgtype.UUID {
	var id pgtype.UUID
	copy(id.Bytes[:], b)
	id.Valid = true
	return id
}
