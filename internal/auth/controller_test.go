package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/services"
	tu "github.com/shibest/mycelius/internal/testing"
)

// stubProxy answers /{service}/auth/token and /{service}/auth/refresh with canned replies.
type stubProxy struct {
	tokenStatus, refreshStatus int
	tokenBody, refreshBody     string
	tokenCalls, refreshCalls   atomic.Int32
	lastBody                   map[string]string
}

func (p *stubProxy) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&p.lastBody)
		switch r.URL.Path {
		case "/spotify/auth/token", "/trakt/auth/token":
			p.tokenCalls.Add(1)
			tu.JSONHandler(p.tokenStatus, p.tokenBody)(w, r)
		case "/spotify/auth/refresh", "/trakt/auth/refresh":
			p.refreshCalls.Add(1)
			tu.JSONHandler(p.refreshStatus, p.refreshBody)(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestController(t *testing.T, service models.Service, proxyURL string, store *tu.MemoryTokenStore, opts ...Option) *Controller {
	t.Helper()
	return NewController(services.Providers[service], "client-id", "http://127.0.0.1:3000/callback/"+string(service),
		store, services.NewAPIService(proxyURL, nil), opts...)
}

func TestController(t *testing.T) {
	t.Run("Initial State", func(t *testing.T) {
		store := tu.NewMemoryTokenStore()
		c := newTestController(t, models.ServiceSpotify, "http://unused", store)
		if c.State() != StateLoggedOut {
			t.Errorf("expected logged out, got %s", c.State())
		}

		store.Set(models.ServiceTrakt, &models.TokenRecord{AccessToken: "AT"})
		c = newTestController(t, models.ServiceTrakt, "http://unused", store)
		if c.State() != StateLoggedIn {
			t.Errorf("expected logged in with stored record, got %s", c.State())
		}
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("Spotify URL", func(t *testing.T) {
			var navigated string
			c := newTestController(t, models.ServiceSpotify, "http://unused", tu.NewMemoryTokenStore(),
				WithNavigator(func(u string) error { navigated = u; return nil }))

			authURL, err := c.Login(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if navigated != authURL {
				t.Error("navigator should receive the authorize URL")
			}

			u, _ := url.Parse(authURL)
			q := u.Query()
			if u.Host != "accounts.spotify.com" {
				t.Errorf("unexpected host %s", u.Host)
			}
			for key, want := range map[string]string{
				"client_id":     "client-id",
				"response_type": "code",
				"redirect_uri":  "http://127.0.0.1:3000/callback/spotify",
				"show_dialog":   "true",
				"state":         c.ExpectedState(),
			} {
				if got := q.Get(key); got != want {
					t.Errorf("%s: expected %q, got %q", key, want, got)
				}
			}
			if q.Get("scope") == "" {
				t.Error("spotify authorize url should carry scopes")
			}
			if q.Get("client_secret") != "" {
				t.Error("authorize url must not carry a secret")
			}
			if c.State() != StateAuthorizing {
				t.Errorf("expected authorizing, got %s", c.State())
			}
		})

		t.Run("Trakt URL Has No Spotify Params", func(t *testing.T) {
			c := newTestController(t, models.ServiceTrakt, "http://unused", tu.NewMemoryTokenStore())
			authURL, _ := c.Login(context.Background())

			u, _ := url.Parse(authURL)
			if u.Query().Get("show_dialog") != "" || u.Query().Get("scope") != "" {
				t.Errorf("unexpected params in %s", authURL)
			}
		})

		t.Run("Last Call Wins", func(t *testing.T) {
			c := newTestController(t, models.ServiceTrakt, "http://unused", tu.NewMemoryTokenStore())
			c.Login(context.Background())
			first := c.ExpectedState()
			c.Login(context.Background())

			if c.ExpectedState() == first {
				t.Error("second login should issue a new state")
			}
		})

		t.Run("Navigator Failure Still Returns URL", func(t *testing.T) {
			c := newTestController(t, models.ServiceTrakt, "http://unused", tu.NewMemoryTokenStore(),
				WithNavigator(func(string) error { return errors.New("no browser") }))

			authURL, err := c.Login(context.Background())
			if err == nil || authURL == "" {
				t.Errorf("expected url and error, got %q %v", authURL, err)
			}
		})
	})

	t.Run("HandleCallback", func(t *testing.T) {
		t.Run("Login Then Callback Stores Tokens", func(t *testing.T) {
			proxy := &stubProxy{tokenStatus: http.StatusOK, tokenBody: `{"access_token":"AT1","refresh_token":"RT1","token_type":"Bearer"}`}
			srv := proxy.server(t)
			store := tu.NewMemoryTokenStore()
			c := newTestController(t, models.ServiceSpotify, srv.URL, store, WithNavigator(func(string) error { return nil }))

			if _, err := c.Login(context.Background()); err != nil {
				t.Fatalf("login failed: %v", err)
			}
			if ok := c.HandleCallback(context.Background(), "abc123"); !ok {
				t.Fatal("expected callback to succeed")
			}

			record, _ := store.Get(models.ServiceSpotify)
			if record == nil || record.AccessToken != "AT1" || record.RefreshToken != "RT1" {
				t.Fatalf("unexpected record %+v", record)
			}
			if record.ObtainedAt.IsZero() {
				t.Error("obtained_at should be stamped")
			}
			if proxy.lastBody["code"] != "abc123" {
				t.Errorf("expected code to be posted, got %v", proxy.lastBody)
			}
			if _, leaked := proxy.lastBody["client_secret"]; leaked {
				t.Error("controller must not send a client secret")
			}
			if c.State() != StateLoggedIn {
				t.Errorf("expected logged in, got %s", c.State())
			}
		})

		t.Run("Without Refresh Token", func(t *testing.T) {
			proxy := &stubProxy{tokenStatus: http.StatusOK, tokenBody: `{"access_token":"AT1"}`}
			srv := proxy.server(t)
			store := tu.NewMemoryTokenStore()
			c := newTestController(t, models.ServiceSpotify, srv.URL, store)

			if !c.HandleCallback(context.Background(), "code") {
				t.Fatal("expected success")
			}
			record, _ := store.Get(models.ServiceSpotify)
			if record.RefreshToken != "" {
				t.Errorf("expected no refresh token, got %q", record.RefreshToken)
			}
		})

		failures := []struct {
			name   string
			status int
			body   string
		}{
			{"Provider Error", http.StatusBadRequest, `{"error":"invalid_grant"}`},
			{"Missing Access Token", http.StatusOK, `{"token_type":"Bearer"}`},
			{"Non String Access Token", http.StatusOK, `{"access_token":42}`},
			{"Malformed Body", http.StatusOK, `<html>oops</html>`},
		}
		for _, tc := range failures {
			t.Run(tc.name, func(t *testing.T) {
				proxy := &stubProxy{tokenStatus: tc.status, tokenBody: tc.body}
				srv := proxy.server(t)
				store := tu.NewMemoryTokenStore()
				c := newTestController(t, models.ServiceTrakt, srv.URL, store)

				if c.HandleCallback(context.Background(), "code") {
					t.Fatal("expected failure")
				}
				if store.Len() != 0 {
					t.Error("store must not be mutated on failure")
				}
				if c.State() != StateLoggedOut {
					t.Errorf("expected logged out, got %s", c.State())
				}
			})
		}

		t.Run("Network Failure", func(t *testing.T) {
			store := tu.NewMemoryTokenStore()
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("dial tcp: refused"))}
			c := NewController(services.Providers[models.ServiceTrakt], "id", "http://x/callback/trakt",
				store, services.NewAPIService("http://proxy", client))

			if c.HandleCallback(context.Background(), "code") {
				t.Fatal("expected failure")
			}
			if store.Len() != 0 {
				t.Error("store must not be mutated on failure")
			}
		})

		t.Run("Repeated Code Is Rejected Without Network Call", func(t *testing.T) {
			proxy := &stubProxy{tokenStatus: http.StatusOK, tokenBody: `{"access_token":"AT1"}`}
			srv := proxy.server(t)
			c := newTestController(t, models.ServiceTrakt, srv.URL, tu.NewMemoryTokenStore())

			if !c.HandleCallback(context.Background(), "once") {
				t.Fatal("first use should succeed")
			}
			if c.HandleCallback(context.Background(), "once") {
				t.Error("second use of the same code should fail")
			}
			if n := proxy.tokenCalls.Load(); n != 1 {
				t.Errorf("expected one exchange request, got %d", n)
			}
		})

		t.Run("Empty Code", func(t *testing.T) {
			c := newTestController(t, models.ServiceTrakt, "http://unused", tu.NewMemoryTokenStore())
			if c.HandleCallback(context.Background(), "") {
				t.Error("empty code should fail")
			}
		})

		t.Run("Store Failure", func(t *testing.T) {
			proxy := &stubProxy{tokenStatus: http.StatusOK, tokenBody: `{"access_token":"AT1"}`}
			srv := proxy.server(t)
			store := tu.NewMemoryTokenStore()
			store.SetErr = errors.New("disk full")
			c := newTestController(t, models.ServiceTrakt, srv.URL, store)

			if c.HandleCallback(context.Background(), "code") {
				t.Error("expected failure when the store rejects the record")
			}
		})
	})

	t.Run("RefreshAccessToken", func(t *testing.T) {
		t.Run("Keeps Existing Refresh Token When Omitted", func(t *testing.T) {
			proxy := &stubProxy{refreshStatus: http.StatusOK, refreshBody: `{"access_token":"AT2"}`}
			srv := proxy.server(t)
			store := tu.NewMemoryTokenStore()
			store.Set(models.ServiceSpotify, &models.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1"})
			c := newTestController(t, models.ServiceSpotify, srv.URL, store)

			if !c.RefreshAccessToken(context.Background()) {
				t.Fatal("expected refresh to succeed")
			}
			record, _ := store.Get(models.ServiceSpotify)
			if record.AccessToken != "AT2" || record.RefreshToken != "RT1" {
				t.Errorf("unexpected record %+v", record)
			}
			if proxy.lastBody["refresh_token"] != "RT1" {
				t.Errorf("expected refresh token to be posted, got %v", proxy.lastBody)
			}
		})

		t.Run("Rotates Refresh Token When Returned", func(t *testing.T) {
			proxy := &stubProxy{refreshStatus: http.StatusOK, refreshBody: `{"access_token":"AT2","refresh_token":"RT2"}`}
			srv := proxy.server(t)
			store := tu.NewMemoryTokenStore()
			store.Set(models.ServiceTrakt, &models.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1"})
			c := newTestController(t, models.ServiceTrakt, srv.URL, store)

			if !c.RefreshAccessToken(context.Background()) {
				t.Fatal("expected refresh to succeed")
			}
			record, _ := store.Get(models.ServiceTrakt)
			if record.RefreshToken != "RT2" {
				t.Errorf("expected rotated refresh token, got %q", record.RefreshToken)
			}
			if c.State() != StateLoggedIn {
				t.Errorf("expected logged in, got %s", c.State())
			}
		})

		t.Run("No Refresh Token Logs Out", func(t *testing.T) {
			proxy := &stubProxy{}
			srv := proxy.server(t)
			store := tu.NewMemoryTokenStore()
			store.Set(models.ServiceSpotify, &models.TokenRecord{AccessToken: "AT1"})
			c := newTestController(t, models.ServiceSpotify, srv.URL, store)

			if c.RefreshAccessToken(context.Background()) {
				t.Fatal("expected refresh to fail")
			}
			if store.Len() != 0 {
				t.Error("expected tokens to be cleared")
			}
			if proxy.refreshCalls.Load() != 0 {
				t.Error("no request should be made without a refresh token")
			}
		})

		t.Run("Provider Failure Logs Out", func(t *testing.T) {
			proxy := &stubProxy{refreshStatus: http.StatusUnauthorized, refreshBody: `{"error":"invalid_grant"}`}
			srv := proxy.server(t)
			store := tu.NewMemoryTokenStore()
			store.Set(models.ServiceTrakt, &models.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1"})
			c := newTestController(t, models.ServiceTrakt, srv.URL, store)

			if c.RefreshAccessToken(context.Background()) {
				t.Fatal("expected refresh to fail")
			}
			if store.Len() != 0 {
				t.Error("expected tokens to be cleared")
			}
			if c.State() != StateLoggedOut {
				t.Errorf("expected logged out, got %s", c.State())
			}
		})
	})

	t.Run("Logout Is Idempotent", func(t *testing.T) {
		store := tu.NewMemoryTokenStore()
		store.Set(models.ServiceSpotify, &models.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1"})
		store.Set(models.ServiceTrakt, &models.TokenRecord{AccessToken: "T"})
		c := newTestController(t, models.ServiceSpotify, "http://unused", store)

		if err := c.Logout(); err != nil {
			t.Fatalf("first logout failed: %v", err)
		}
		once, _ := store.Get(models.ServiceSpotify)

		if err := c.Logout(); err != nil {
			t.Fatalf("second logout failed: %v", err)
		}
		twice, _ := store.Get(models.ServiceSpotify)

		if once != nil || twice != nil {
			t.Errorf("expected cleared store, got %+v then %+v", once, twice)
		}
		if store.Len() != 1 {
			t.Error("logout must only clear its own service")
		}
		if _, err := c.AccessToken(); err == nil {
			t.Error("expected not authenticated after logout")
		}
	})
}
