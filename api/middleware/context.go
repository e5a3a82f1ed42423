package middleware

import "context"

type contextKey string

const (
	ctxAccountID contextKey = "account_id"
	ctxEmail     contextKey = "account_email"
	ctxRole      contextKey = "actor_role"
)

func AccountIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxAccountID)
}

func EmailFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxEmail)
}

func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

// WithAccount injects the authenticated caller into the context.
func WithAccount(ctx context.Context, accountID, email, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	ctx = context.WithValue(ctx, ctxEmail, email)
	return context.WithValue(ctx, ctxRole, role)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
