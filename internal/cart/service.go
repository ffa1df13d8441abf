package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-bazaar/internal/coupon"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Querier is the persistence surface the cart service needs.
type Querier interface {
	CreateCart(ctx context.Context, arg store.CreateCartParams) (store.Cart, error)
	GetCartByID(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	GetActiveCartByUser(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	GetActiveCartByAnon(ctx context.Context, anonID pgtype.Text) (store.Cart, error)
	TouchCart(ctx context.Context, arg store.TouchCartParams) error
	TransferCartToUser(ctx context.Context, arg store.TransferCartToUserParams) error
	UpdateCartCoupon(ctx context.Context, arg store.UpdateCartCouponParams) error
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	GetCartItemByID(ctx context.Context, id pgtype.UUID) (store.CartItem, error)
	FindCartItemByProduct(ctx context.Context, arg store.FindCartItemByProductParams) (store.CartItem, error)
	CreateCartItem(ctx context.Context, arg store.CreateCartItemParams) (store.CartItem, error)
	UpdateCartItemQty(ctx context.Context, arg store.UpdateCartItemQtyParams) (store.CartItem, error)
	DeleteCartItem(ctx context.Context, arg store.DeleteCartItemParams) error
	GetProductForCart(ctx context.Context, id pgtype.UUID) (store.Product, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Q       Querier
	Coupons *coupon.Service
	TTL     time.Duration
	Now     func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads or creates a cart for the provided identifiers.
func (s *Service) EnsureCart(ctx context.Context, userID *string, anonID *string) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}

	if userID != nil && *userID != "" {
		uid, err := toUUID(*userID)
		if err != nil {
			return store.Cart{}, fmt.Errorf("parse user id: %w", err)
		}
		cart, err := s.Q.GetActiveCartByUser(ctx, uid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.Q.CreateCart(ctx, store.CreateCartParams{UserID: uid, ExpiresAt: expires})
			}
			return store.Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cart.ID, ExpiresAt: expires})
		return cart, nil
	}

	if anonID != nil && *anonID != "" {
		anon := pgtype.Text{String: *anonID, Valid: true}
		cart, err := s.Q.GetActiveCartByAnon(ctx, anon)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.Q.CreateCart(ctx, store.CreateCartParams{AnonID: anon, ExpiresAt: expires})
			}
			return store.Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cart.ID, ExpiresAt: expires})
		return cart, nil
	}

	return store.Cart{}, ErrInvalidInput
}

// AddItem inserts or increments a cart line, capturing the product's current
// price on first add.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	cID, err := toUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	pID, err := toUUID(productID)
	if err != nil {
		return fmt.Errorf("parse product id: %w", err)
	}

	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	item, err := s.Q.FindCartItemByProduct(ctx, store.FindCartItemByProductParams{CartID: cID, ProductID: pID})
	if err == nil {
		newQty := item.Qty + int32(qty)
		newSubtotal := int64(newQty) * item.UnitPrice
		if _, err := s.Q.UpdateCartItemQty(ctx, store.UpdateCartItemQtyParams{ID: item.ID, Qty: newQty, Subtotal: newSubtotal}); err != nil {
			return err
		}
		_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cID, ExpiresAt: expires})
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	product, err := s.Q.GetProductForCart(ctx, pID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("unknown product: %w", ErrInvalidInput)
		}
		return err
	}
	if !product.Active {
		return fmt.Errorf("product not available: %w", ErrInvalidInput)
	}
	unitPrice := product.Price
	if unitPrice < 0 {
		unitPrice = 0
	}
	if _, err := s.Q.CreateCartItem(ctx, store.CreateCartItemParams{
		CartID:    cID,
		ProductID: pID,
		Title:     product.Title,
		Slug:      product.Slug,
		Qty:       int32(qty),
		UnitPrice: unitPrice,
		Subtotal:  int64(qty) * unitPrice,
	}); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cID, ExpiresAt: expires})
	return nil
}

// UpdateQty updates the quantity for a cart line. Quantities below one are
// rejected; removal is an explicit separate operation.
func (s *Service) UpdateQty(ctx context.Context, itemID string, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty < 1 {
		return fmt.Errorf("qty must be at least 1: %w", ErrInvalidInput)
	}
	id, err := toUUID(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}
	item, err := s.Q.GetCartItemByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := s.Q.UpdateCartItemQty(ctx, store.UpdateCartItemQtyParams{
		ID:       item.ID,
		Qty:      int32(qty),
		Subtotal: int64(qty) * item.UnitPrice,
	}); err != nil {
		return err
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: item.CartID, ExpiresAt: expires})
	return nil
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cID, err := toUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	iID, err := toUUID(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}
	if err := s.Q.DeleteCartItem(ctx, store.DeleteCartItemParams{ID: iID, CartID: cID}); err != nil {
		return err
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cID, ExpiresAt: expires})
	return nil
}

// ApplyCoupon resolves the code against the live cart and, on success,
// persists only the code. The discount amount is never stored: it is
// recomputed on every view so a changed cart can never carry a stale figure.
func (s *Service) ApplyCoupon(ctx context.Context, cartID, code string, user coupon.User) (money.Money, error) {
	if s == nil || s.Q == nil || s.Coupons == nil {
		return money.Money{}, errors.New("cart service not configured")
	}
	if code == "" {
		return money.Money{}, fmt.Errorf("coupon code required: %w", ErrInvalidInput)
	}
	cID, err := toUUID(cartID)
	if err != nil {
		return money.Money{}, fmt.Errorf("parse cart id: %w", err)
	}
	cart, err := s.Q.GetCartByID(ctx, cID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return money.Money{}, ErrNotFound
		}
		return money.Money{}, err
	}
	_, subtotal, err := s.loadItems(ctx, cart.ID)
	if err != nil {
		return money.Money{}, err
	}
	applied, err := s.Coupons.RedeemPreview(ctx, code, user, subtotal)
	if err != nil {
		return money.Money{}, err
	}
	if err := s.Q.UpdateCartCoupon(ctx, store.UpdateCartCouponParams{
		ID:                cart.ID,
		AppliedCouponCode: pgtype.Text{String: applied.Code, Valid: true},
	}); err != nil {
		return money.Money{}, err
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cart.ID, ExpiresAt: expires})
	return applied.Discount(subtotal), nil
}

// RemoveCoupon clears an applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, cartID string) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cID, err := toUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	if err := s.Q.UpdateCartCoupon(ctx, store.UpdateCartCouponParams{ID: cID}); err != nil {
		return err
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cID, ExpiresAt: expires})
	return nil
}

// Merge moves guest cart items into the user's active cart and returns the
// resulting cart identifier. A guest coupon is dropped rather than carried
// over: eligibility may differ once the user is known.
func (s *Service) Merge(ctx context.Context, guestCartID, userID string) (string, error) {
	if s == nil || s.Q == nil {
		return "", errors.New("cart service not configured")
	}
	gID, err := toUUID(guestCartID)
	if err != nil {
		return "", fmt.Errorf("parse guest cart id: %w", err)
	}
	uID, err := toUUID(userID)
	if err != nil {
		return "", fmt.Errorf("parse user id: %w", err)
	}
	guestCart, err := s.Q.GetCartByID(ctx, gID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	userIDCopy := userID
	userCart, err := s.EnsureCart(ctx, &userIDCopy, nil)
	if err != nil {
		return "", err
	}
	guestItems, err := s.Q.ListCartItems(ctx, gID)
	if err != nil {
		return "", err
	}
	for _, item := range guestItems {
		existing, err := s.Q.FindCartItemByProduct(ctx, store.FindCartItemByProductParams{
			CartID:    userCart.ID,
			ProductID: item.ProductID,
		})
		if err == nil {
			if existing.Qty < item.Qty {
				if _, err := s.Q.UpdateCartItemQty(ctx, store.UpdateCartItemQtyParams{
					ID:       existing.ID,
					Qty:      item.Qty,
					Subtotal: int64(item.Qty) * existing.UnitPrice,
				}); err != nil {
					return "", err
				}
			}
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
		if _, err := s.Q.CreateCartItem(ctx, store.CreateCartItemParams{
			CartID:    userCart.ID,
			ProductID: item.ProductID,
			Title:     item.Title,
			Slug:      item.Slug,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		}); err != nil {
			return "", err
		}
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: userCart.ID, ExpiresAt: expires})
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: guestCart.ID, ExpiresAt: pgtype.Timestamptz{Time: s.now(), Valid: true}})
	_ = s.Q.UpdateCartCoupon(ctx, store.UpdateCartCouponParams{ID: guestCart.ID})
	_ = s.Q.TransferCartToUser(ctx, store.TransferCartToUserParams{ID: guestCart.ID, UserID: uID})
	return uuidString(userCart.ID), nil
}

// View is the computed cart presentation. Discount comes from the applied
// coupon re-resolved against the current items on every call.
type View struct {
	CartID       string          `json:"cart_id"`
	Items        []store.CartItem `json:"items"`
	Subtotal     money.Money     `json:"subtotal"`
	Discount     money.Money     `json:"discount"`
	CouponCode   string          `json:"coupon_code,omitempty"`
	CouponNotice string          `json:"coupon_notice,omitempty"`
}

// Evaluate loads the cart and recomputes its totals. A previously applied
// coupon that is no longer redeemable is cleared from the cart, and the
// reason is reported in the view rather than failing the whole read.
func (s *Service) Evaluate(ctx context.Context, cartID string, user coupon.User) (View, error) {
	if s == nil || s.Q == nil {
		return View{}, errors.New("cart service not configured")
	}
	cID, err := toUUID(cartID)
	if err != nil {
		return View{}, fmt.Errorf("parse cart id: %w", err)
	}
	cart, err := s.Q.GetCartByID(ctx, cID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, ErrNotFound
		}
		return View{}, err
	}
	items, subtotal, err := s.loadItems(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	view := View{
		CartID:   uuidString(cart.ID),
		Items:    items,
		Subtotal: subtotal,
		Discount: money.Zero(subtotal.Currency),
	}
	if !cart.AppliedCouponCode.Valid || cart.AppliedCouponCode.String == "" {
		return view, nil
	}
	if s.Coupons == nil {
		return view, errors.New("cart service not configured")
	}
	applied, err := s.Coupons.RedeemPreview(ctx, cart.AppliedCouponCode.String, user, subtotal)
	if err != nil {
		if isCouponRejection(err) {
			_ = s.Q.UpdateCartCoupon(ctx, store.UpdateCartCouponParams{ID: cart.ID})
			view.CouponNotice = err.Error()
			return view, nil
		}
		return View{}, err
	}
	view.CouponCode = applied.Code
	view.Discount = applied.Discount(subtotal)
	return view, nil
}

// PricingItems converts cart lines into pricing engine items.
func PricingItems(items []store.CartItem, currency string) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{
			ProductID: uuid.UUID(it.ProductID.Bytes),
			UnitPrice: money.New(it.UnitPrice, currency),
			Qty:       it.Qty,
		})
	}
	return out
}

func (s *Service) loadItems(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, money.Money, error) {
	items, err := s.Q.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, money.Money{}, err
	}
	currency := ""
	if s.Coupons != nil {
		currency = s.Coupons.Currency
	}
	var subtotal int64
	for _, it := range items {
		subtotal += it.Subtotal
	}
	return items, money.New(subtotal, currency), nil
}

func isCouponRejection(err error) bool {
	return errors.Is(err, coupon.ErrNotFound) ||
		errors.Is(err, coupon.ErrNotAssigned) ||
		errors.Is(err, coupon.ErrInactive) ||
		errors.Is(err, coupon.ErrExpired) ||
		errors.Is(err, coupon.ErrBelowMinimumOrder) ||
		errors.Is(err, coupon.ErrUsageExceeded)
}

func toUUID(value string) (pgtype.UUID, error) {
	var id pgtype.UUID
	parsed, err := uuid.Parse(value)
	if err != nil {
		return id, err
	}
	id.Bytes = parsed
	id.Valid = true
	return id, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// ToUUID converts a string representation of a UUID into pgtype.UUID.
func ToUUID(value string) (pgtype.UUID, error) {
	return toUUID(value)
}

// UUIDString converts a pgtype.UUID into a canonical string.
func UUIDString(id pgtype.UUID) string {
	return uuidString(id)
}
