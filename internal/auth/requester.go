package auth

import (
	"context"
	"errors"
)

type contextKey string

const RequesterKey contextKey = "requester"

var ErrNoRequester = errors.New("requester not found in context")

// CurrentRequester retrieves the attribution string propagated from the
// X-Requester header. Returns ErrNoRequester when the header was absent.
func CurrentRequester(ctx context.Context) (string, error) {
	requester, ok := ctx.Value(RequesterKey).(string)
	if !ok || requester == "" {
		return "", ErrNoRequester
	}
	return requester, nil
}

func WithRequester(ctx context.Context, requester string) context.Context {
	return context.WithValue(ctx, RequesterKey, requester)
}
