package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
	tu "github.com/shibest/mycelius/internal/testing"
)

func TestWithRefresh(t *testing.T) {
	expired := &services.TokenExpiredError{Service: models.ServiceSpotify}

	t.Run("Retries Exactly Once After Refresh", func(t *testing.T) {
		proxy := &stubProxy{refreshStatus: http.StatusOK, refreshBody: `{"access_token":"AT2"}`}
		srv := proxy.server(t)
		store := tu.NewMemoryTokenStore()
		store.Set(models.ServiceSpotify, &models.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1"})
		c := newTestController(t, models.ServiceSpotify, srv.URL, store)

		var tokens []string
		got, err := WithRefresh(context.Background(), c, func(ctx context.Context, token string) (string, error) {
			tokens = append(tokens, token)
			if token == "AT1" {
				return "", expired
			}
			return "top artists", nil
		})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "top artists" {
			t.Errorf("expected retried result, got %q", got)
		}
		if len(tokens) != 2 || tokens[0] != "AT1" || tokens[1] != "AT2" {
			t.Errorf("expected one call per token, got %v", tokens)
		}
		if proxy.refreshCalls.Load() != 1 {
			t.Errorf("expected one refresh, got %d", proxy.refreshCalls.Load())
		}
	})

	t.Run("Second Expiry Is Not Retried", func(t *testing.T) {
		proxy := &stubProxy{refreshStatus: http.StatusOK, refreshBody: `{"access_token":"AT2"}`}
		srv := proxy.server(t)
		store := tu.NewMemoryTokenStore()
		store.Set(models.ServiceSpotify, &models.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1"})
		c := newTestController(t, models.ServiceSpotify, srv.URL, store)

		calls := 0
		_, err := WithRefresh(context.Background(), c, func(ctx context.Context, token string) (int, error) {
			calls++
			return 0, expired
		})

		if !services.IsTokenExpired(err) {
			t.Errorf("expected token expired, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected exactly two calls, got %d", calls)
		}
	})

	t.Run("Failed Refresh Logs Out And Returns Original Error", func(t *testing.T) {
		proxy := &stubProxy{refreshStatus: http.StatusBadRequest, refreshBody: `{"error":"invalid_grant"}`}
		srv := proxy.server(t)
		store := tu.NewMemoryTokenStore()
		store.Set(models.ServiceSpotify, &models.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1"})
		c := newTestController(t, models.ServiceSpotify, srv.URL, store)

		calls := 0
		_, err := WithRefresh(context.Background(), c, func(ctx context.Context, token string) (int, error) {
			calls++
			return 0, expired
		})

		if err != expired {
			t.Errorf("expected the original error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected no retry after failed refresh, got %d calls", calls)
		}
		if store.Len() != 0 {
			t.Error("expected logout to clear tokens")
		}
	})

	t.Run("Other Errors Are Not Retried", func(t *testing.T) {
		store := tu.NewMemoryTokenStore()
		store.Set(models.ServiceSpotify, &models.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1"})
		c := newTestController(t, models.ServiceSpotify, "http://unused", store)

		failed := &services.RequestFailedError{Service: models.ServiceSpotify, Status: 500}
		calls := 0
		_, err := WithRefresh(context.Background(), c, func(ctx context.Context, token string) (int, error) {
			calls++
			return 0, failed
		})

		if !errors.Is(err, shared.ErrAPIRequest) || calls != 1 {
			t.Errorf("expected single failed call, got %d calls and %v", calls, err)
		}
	})

	t.Run("Not Logged In", func(t *testing.T) {
		c := newTestController(t, models.ServiceTrakt, "http://unused", tu.NewMemoryTokenStore())

		_, err := WithRefresh(context.Background(), c, func(ctx context.Context, token string) (int, error) {
			t.Error("fn should not be called without a token")
			return 0, nil
		})
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}
