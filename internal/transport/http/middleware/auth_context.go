package middleware

import "context"

type ctxKey string

const (
	ctxUserID   ctxKey = "user_id"
	ctxFamilyID ctxKey = "family_id"
)

func WithUser(ctx context.Context, userID, familyID string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxFamilyID, familyID)
	return ctx
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxUserID).(string)
	return v, ok && v != ""
}

func FamilyIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxFamilyID).(string)
	return v, ok && v != ""
}
