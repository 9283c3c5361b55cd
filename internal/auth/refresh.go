package auth

import (
	"context"

	"github.com/shibest/mycelius/internal/services"
)

// WithRefresh calls fn with the current access token. If fn reports an expired token, it refreshes
// once and calls fn again with the new token. When the refresh fails the controller has already
// logged out and the original error is returned.
func WithRefresh[T any](ctx context.Context, c *Controller, fn func(ctx context.Context, token string) (T, error)) (T, error) {
	token, err := c.AccessToken()
	if err != nil {
		var zero T
		return zero, err
	}

	result, err := fn(ctx, token)
	if err == nil || !services.IsTokenExpired(err) {
		return result, err
	}

	c.logger.Info("access token expired, refreshing")
	if !c.RefreshAccessToken(ctx) {
		return result, err
	}

	token, terr := c.AccessToken()
	if terr != nil {
		return result, err
	}
	return fn(ctx, token)
}
