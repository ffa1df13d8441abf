package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const cartColumns = `id, user_id, anon_id, applied_coupon_code, created_at, updated_at, expires_at`

func scanCart(row interface{ Scan(...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.AppliedCouponCode, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// CreateCartParams names the columns for a new cart.
type CreateCartParams struct {
	UserID    pgtype.UUID
	AnonID    pgtype.Text
	ExpiresAt pgtype.Timestamptz
}

// CreateCart inserts a cart for a user or anonymous session.
func (s *Store) CreateCart(ctx context.Context, arg CreateCartParams) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO carts (user_id, anon_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+cartColumns,
		arg.UserID, arg.AnonID, arg.ExpiresAt)
	return scanCart(row)
}

// GetCartByID loads a cart by primary key.
func (s *Store) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// GetActiveCartByUser returns the most recent unexpired cart for the user.
func (s *Store) GetActiveCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE user_id = $1 AND expires_at > now()
		ORDER BY updated_at DESC
		LIMIT 1`, userID)
	return scanCart(row)
}

// GetActiveCartByAnon returns the most recent unexpired cart for the
// anonymous session identifier.
func (s *Store) GetActiveCartByAnon(ctx context.Context, anonID pgtype.Text) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE anon_id = $1 AND expires_at > now()
		ORDER BY updated_at DESC
		LIMIT 1`, anonID)
	return scanCart(row)
}

// TouchCartParams extends a cart's lifetime.
type TouchCartParams struct {
	ID        pgtype.UUID
	ExpiresAt pgtype.Timestamptz
}

// TouchCart bumps updated_at and the expiry on cart activity.
func (s *Store) TouchCart(ctx context.Context, arg TouchCartParams) error {
	_, err := s.db.Exec(ctx, `
		UPDATE carts SET updated_at = now(), expires_at = $2 WHERE id = $1`,
		arg.ID, arg.ExpiresAt)
	return err
}

// TransferCartToUserParams reassigns a guest cart after login.
type TransferCartToUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

// TransferCartToUser attaches a guest cart to the user account.
func (s *Store) TransferCartToUser(ctx context.Context, arg TransferCartToUserParams) error {
	_, err := s.db.Exec(ctx, `
		UPDATE carts SET user_id = $2, anon_id = NULL, updated_at = now() WHERE id = $1`,
		arg.ID, arg.UserID)
	return err
}

// UpdateCartCouponParams sets or clears the applied coupon code.
type UpdateCartCouponParams struct {
	ID                pgtype.UUID
	AppliedCouponCode pgtype.Text
}

// UpdateCartCoupon persists only the coupon code; the discount amount is
// recomputed on every read so it can never go stale.
func (s *Store) UpdateCartCoupon(ctx context.Context, arg UpdateCartCouponParams) error {
	_, err := s.db.Exec(ctx, `
		UPDATE carts SET applied_coupon_code = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.AppliedCouponCode)
	return err
}

const cartItemColumns = `id, cart_id, product_id, title, slug, qty, unit_price, subtotal`

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice, &it.Subtotal)
	return it, err
}

// ListCartItems returns all lines of a cart in insertion order.
func (s *Store) ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetCartItemByID loads a single cart line.
func (s *Store) GetCartItemByID(ctx context.Context, id pgtype.UUID) (CartItem, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cartItemColumns+` FROM cart_items WHERE id = $1`, id)
	return scanCartItem(row)
}

// FindCartItemByProductParams locates an existing line for merge-on-add.
type FindCartItemByProductParams struct {
	CartID    pgtype.UUID
	ProductID pgtype.UUID
}

// FindCartItemByProduct returns the line for the product if the cart already
// holds one.
func (s *Store) FindCartItemByProduct(ctx context.Context, arg FindCartItemByProductParams) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		arg.CartID, arg.ProductID)
	return scanCartItem(row)
}

// CreateCartItemParams names the columns for a new cart line.
type CreateCartItemParams struct {
	CartID    pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Slug      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

// CreateCartItem inserts a new line.
func (s *Store) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, title, slug, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+cartItemColumns,
		arg.CartID, arg.ProductID, arg.Title, arg.Slug, arg.Qty, arg.UnitPrice, arg.Subtotal)
	return scanCartItem(row)
}

// UpdateCartItemQtyParams changes a line's quantity and cached subtotal.
type UpdateCartItemQtyParams struct {
	ID       pgtype.UUID
	Qty      int32
	Subtotal int64
}

// UpdateCartItemQty updates the quantity of an existing line.
func (s *Store) UpdateCartItemQty(ctx context.Context, arg UpdateCartItemQtyParams) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE cart_items SET qty = $2, subtotal = $3 WHERE id = $1
		RETURNING `+cartItemColumns,
		arg.ID, arg.Qty, arg.Subtotal)
	return scanCartItem(row)
}

// DeleteCartItemParams scopes deletion to the owning cart.
type DeleteCartItemParams struct {
	ID     pgtype.UUID
	CartID pgtype.UUID
}

// DeleteCartItem removes a line from the cart.
func (s *Store) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, arg.ID, arg.CartID)
	return err
}

// GetProductForCart loads the product columns needed when adding a line.
func (s *Store) GetProductForCart(ctx context.Context, id pgtype.UUID) (Product, error) {
	var p Product
	row := s.db.QueryRow(ctx, `
		SELECT id, title, slug, price, stock, active FROM products WHERE id = $1`, id)
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Price, &p.Stock, &p.Active)
	return p, err
}
