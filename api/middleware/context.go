package middleware

import (
	"context"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
)

type ctxKey int

const (
	callerKey ctxKey = iota
	requestIDKey
)

// Caller is the authenticated admin seeded by Auth.
type Caller struct {
	UserID string
	Email  string
	Role   enums.Role
}

// WithCaller attaches the caller; tests use it to skip Auth.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey, caller)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}

func UserIDFromContext(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.UserID
}

func EmailFromContext(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.Email
}

func RoleFromContext(ctx context.Context) enums.Role {
	caller, _ := CallerFromContext(ctx)
	return caller.Role
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
