package store

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Cart is a shopping cart row. A cart belongs to either a registered user or
// an anonymous session, never both.
type Cart struct {
	ID                pgtype.UUID
	UserID            pgtype.UUID
	AnonID            pgtype.Text
	AppliedCouponCode pgtype.Text
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
	ExpiresAt         pgtype.Timestamptz
}

// CartItem is a cart line. Unit price and subtotal are minor units.
type CartItem struct {
	ID        pgtype.UUID
	CartID    pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Slug      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

// Product carries the columns the cart needs when adding a line.
type Product struct {
	ID     pgtype.UUID
	Title  string
	Slug   string
	Price  int64
	Stock  int32
	Active bool
}

// Coupon is a coupon row. AssignedEmails empty means general pool.
type Coupon struct {
	ID             pgtype.UUID
	Code           string
	Kind           string
	PercentBps     pgtype.Int4
	Value          int64
	MinSpend       int64
	ExpiresAt      pgtype.Timestamptz
	PerUserLimit   pgtype.Int4
	AssignedEmails []string
	Active         bool
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// CouponUsage is the per-(coupon, user) redemption counter.
type CouponUsage struct {
	CouponID  pgtype.UUID
	UserID    pgtype.UUID
	UsedCount int32
	UpdatedAt pgtype.Timestamptz
}

// Order is a confirmed order with its pricing snapshot, immutable once
// created apart from the fulfilment status.
type Order struct {
	ID             pgtype.UUID
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
	CreatedAt      pgtype.Timestamptz
}

// OrderItem snapshots a cart line at confirmation time.
type OrderItem struct {
	ID        pgtype.UUID
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Slug      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

// ShippingZone is a configured zone row.
type ShippingZone struct {
	ID             pgtype.UUID
	Name           string
	PostalPrefixes []string
}

// ShippingMethod is a method row; Position preserves the configured
// fastest-first ordering within its zone.
type ShippingMethod struct {
	ID        string
	ZoneID    pgtype.UUID
	Name      string
	BaseCost  int64
	ETADays   int32
	FreeAbove pgtype.Int8
	Position  int32
}

// User is an account row. Password hashes are argon2id strings.
type User struct {
	ID           pgtype.UUID
	Email        string
	Name         string
	Role         string
	PasswordHash string
	CreatedAt    pgtype.Timestamptz
}

// DomainEvent is an outbox row fanned out by the worker.
type DomainEvent struct {
	ID           pgtype.UUID
	Topic        string
	AggregateID  pgtype.UUID
	Payload      []byte
	OccurredAt   pgtype.Timestamptz
	DispatchedAt pgtype.Timestamptz
}
