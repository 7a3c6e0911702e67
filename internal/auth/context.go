package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxPropertyIDs
)

func WithIdentity(ctx context.Context, userID string, propertyIDs []string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxPropertyIDs, propertyIDs)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func PropertyIDs(ctx context.Context) ([]string, error) {
	v := ctx.Value(ctxPropertyIDs)
	if ids, ok := v.([]string); ok {
		return ids, nil
	}
	return nil, errors.New("property_ids not in context")
}

// AuthorizedForProperty reports whether the request identity may act on
// propertyID.
func AuthorizedForProperty(ctx context.Context, propertyID string) bool {
	ids, err := PropertyIDs(ctx)
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == propertyID {
			return true
		}
	}
	return false
}
