package common

import "context"

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyUserEmail
	ctxKeyUserRole
)

// WithUserID stores the authenticated user id on the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, id)
}

// UserID returns the authenticated user id, if present.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(string)
	return id, ok && id != ""
}

// WithUserEmail stores the authenticated user's email on the context.
// Assigned-coupon checks match on this value.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKeyUserEmail, email)
}

// UserEmail returns the authenticated user's email, if present.
func UserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(ctxKeyUserEmail).(string)
	return email, ok && email != ""
}

// WithUserRole stores the authenticated user's role on the context.
func WithUserRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyUserRole, role)
}

// UserRole returns the authenticated user's role, if present.
func UserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(ctxKeyUserRole).(string)
	return role, ok && role != ""
}
