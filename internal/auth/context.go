package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxAccountID
	ctxRole
)

var (
	errNoUser    = errors.New("user_id not in context")
	errNoAccount = errors.New("account_id not in context")
	errNoRole    = errors.New("role not in context")
)

func WithIdentity(ctx context.Context, userID, accountID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxUserID, errNoUser)
}

func AccountID(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxAccountID, errNoAccount)
}

func Role(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxRole, errNoRole)
}

func stringValue(ctx context.Context, key ctxKey, missing error) (string, error) {
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s, nil
	}
	return "", missing
}
