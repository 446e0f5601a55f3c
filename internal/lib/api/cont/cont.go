// Package cont carries authenticated request data through the context.
package cont

import (
	"context"

	"botflow/entity"
)

type ctxKey int

const userKey ctxKey = iota

// PutUser attaches the authenticated user to the context.
func PutUser(ctx context.Context, user *entity.UserAuth) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the authenticated user, or nil outside an authenticated
// request.
func GetUser(ctx context.Context) *entity.UserAuth {
	user, _ := ctx.Value(userKey).(*entity.UserAuth)
	return user
}
