package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, cart_id, status, currency, subtotal, discount,
	shipping, tax, total, coupon_code, destination, shipping_method, created_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Currency, &o.Subtotal,
		&o.Discount, &o.Shipping, &o.Tax, &o.Total, &o.CouponCode, &o.Destination,
		&o.ShippingMethod, &o.CreatedAt)
	return o, err
}

// CreateOrderParams snapshots the price breakdown at confirmation time.
type CreateOrderParams struct {
	UserID         pgtype.UUID
	CartID         pgtype.UUID
	Status         string
	Currency       string
	Subtotal       int64
	Discount       int64
	Shipping       int64
	Tax            int64
	Total          int64
	CouponCode     pgtype.Text
	Destination    string
	ShippingMethod string
}

// CreateOrder inserts a confirmed order.
func (s *Store) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (user_id, cart_id, status, currency, subtotal, discount,
			shipping, tax, total, coupon_code, destination, shipping_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+orderColumns,
		arg.UserID, arg.CartID, arg.Status, arg.Currency, arg.Subtotal, arg.Discount,
		arg.Shipping, arg.Tax, arg.Total, arg.CouponCode, arg.Destination, arg.ShippingMethod)
	return scanOrder(row)
}

// CreateOrderItemParams snapshots one cart line.
type CreateOrderItemParams struct {
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Slug      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

// CreateOrderItem inserts an order line.
func (s *Store) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, title, slug, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		arg.OrderID, arg.ProductID, arg.Title, arg.Slug, arg.Qty, arg.UnitPrice, arg.Subtotal)
	return err
}

// GetOrderByID loads a single order.
func (s *Store) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrdersByUserParams pages a user's order history.
type ListOrdersByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

// ListOrdersByUser returns the user's orders newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOrdersByUser counts the user's orders for pagination.
func (s *Store) CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	return total, err
}

// ListOrderItems returns the snapshot lines of an order.
func (s *Store) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, product_id, title, slug, qty, unit_price, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateOrderStatusParams moves an order through fulfilment.
type UpdateOrderStatusParams struct {
	ID     pgtype.UUID
	Status string
}

// UpdateOrderStatus sets the fulfilment status.
func (s *Store) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1 RETURNING `+orderColumns,
		arg.ID, arg.Status)
	return scanOrder(row)
}
