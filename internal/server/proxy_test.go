package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
)

const (
	spotifySecret = "sp-secret/with+chars"
	traktSecret   = "trakt-secret-value"
	steamKey      = "STEAMKEY123"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

type fakeUpstream struct {
	srv      *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func (u *fakeUpstream) last(t *testing.T) recordedRequest {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.requests) == 0 {
		t.Fatal("expected an upstream request")
	}
	return u.requests[len(u.requests)-1]
}

func (u *fakeUpstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

type testProxy struct {
	handler  http.Handler
	upstream *fakeUpstream
	logs     *bytes.Buffer
	cfg      *shared.Config
}

func newTestProxy(t *testing.T, respond http.HandlerFunc, mutate ...func(*shared.Config)) *testProxy {
	t.Helper()

	up := &fakeUpstream{}
	up.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		up.mu.Lock()
		up.requests = append(up.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		up.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		respond(w, r)
	}))
	t.Cleanup(up.srv.Close)

	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify.ClientID = "sp-client"
	cfg.Credentials.Spotify.ClientSecret = spotifySecret
	cfg.Credentials.Trakt.ClientID = "trakt-client"
	cfg.Credentials.Trakt.ClientSecret = traktSecret
	cfg.Credentials.Steam.APIKey = steamKey
	cfg.Server.AppURL = "http://127.0.0.1:3000"
	cfg.Server.RateLimit = 0
	for _, m := range mutate {
		m(cfg)
	}

	providers := map[models.Service]services.Provider{
		models.ServiceSpotify: {
			Service:    models.ServiceSpotify,
			TokenURL:   up.srv.URL + "/spotify/token",
			APIBaseURL: up.srv.URL + "/spotify/api",
			FormToken:  true,
		},
		models.ServiceTrakt: {
			Service:    models.ServiceTrakt,
			TokenURL:   up.srv.URL + "/trakt/token",
			APIBaseURL: up.srv.URL + "/trakt/api",
		},
		models.ServiceSteam: {
			Service:    models.ServiceSteam,
			APIBaseURL: up.srv.URL + "/steam/api",
		},
	}

	var logs bytes.Buffer
	proxy := NewProxy(cfg,
		WithProviders(providers),
		WithHTTPClient(up.srv.Client()),
		WithProxyLogger(shared.NewLogger(&logs)),
	)
	return &testProxy{handler: proxy.Router(), upstream: up, logs: &logs, cfg: cfg}
}

func (tp *testProxy) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	return rec
}

func assertNoSecrets(t *testing.T, where, s string) {
	t.Helper()
	for _, secret := range []string{spotifySecret, url.QueryEscape(spotifySecret), traktSecret, steamKey} {
		if strings.Contains(s, secret) {
			t.Errorf("%s leaked secret %q: %s", where, secret, s)
		}
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func writeTokens(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`))
}

func TestProxyHealth(t *testing.T) {
	tp := newTestProxy(t, writeTokens)
	rec := tp.do(http.MethodGet, "/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	if _, err := time.Parse(time.RFC3339Nano, resp.Timestamp); err != nil {
		t.Errorf("expected RFC3339 timestamp, got %q", resp.Timestamp)
	}
	if rec.Header().Get(correlationHeader) == "" {
		t.Error("expected correlation id header")
	}
	if tp.upstream.count() != 0 {
		t.Error("health must not call upstream")
	}
}

func TestProxyTokenExchange(t *testing.T) {
	t.Run("Spotify Sends Form Grant With Credentials", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens)
		rec := tp.do(http.MethodPost, "/spotify/auth/token", `{"code":"abc"}`, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		req := tp.upstream.last(t)
		if req.Path != "/spotify/token" {
			t.Errorf("expected token path, got %s", req.Path)
		}
		if ct := req.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("expected form content type, got %s", ct)
		}
		form, err := url.ParseQuery(req.Body)
		if err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		want := map[string]string{
			"grant_type":    "authorization_code",
			"code":          "abc",
			"client_id":     "sp-client",
			"client_secret": spotifySecret,
			"redirect_uri":  "http://127.0.0.1:3000/callback/spotify",
		}
		for k, v := range want {
			if form.Get(k) != v {
				t.Errorf("expected %s=%q, got %q", k, v, form.Get(k))
			}
		}

		if !strings.Contains(rec.Body.String(), `"access_token":"access-1"`) {
			t.Errorf("expected provider body relayed, got %s", rec.Body.String())
		}
		assertNoSecrets(t, "response", rec.Body.String())
		assertNoSecrets(t, "logs", tp.logs.String())
	})

	t.Run("Trakt Sends JSON Grant", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens)
		rec := tp.do(http.MethodPost, "/trakt/auth/token", `{"code":"xyz"}`, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		req := tp.upstream.last(t)
		if ct := req.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %s", ct)
		}
		var body map[string]string
		if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
			t.Fatalf("failed to decode grant: %v", err)
		}
		if body["client_secret"] != traktSecret || body["code"] != "xyz" || body["grant_type"] != "authorization_code" {
			t.Errorf("unexpected grant body: %v", body)
		}
		assertNoSecrets(t, "response", rec.Body.String())
	})

	t.Run("Missing Code", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens)
		rec := tp.do(http.MethodPost, "/spotify/auth/token", `{}`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if tp.upstream.count() != 0 {
			t.Error("expected no upstream call")
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens)
		rec := tp.do(http.MethodPost, "/spotify/auth/token", `not json`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Provider Error Is Relayed Redacted", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"bad client ` + spotifySecret + `"}`))
		})
		rec := tp.do(http.MethodPost, "/spotify/auth/token", `{"code":"expired"}`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected provider status 400, got %d", rec.Code)
		}
		msg := decodeError(t, rec)
		if !strings.Contains(msg, "bad client") || !strings.Contains(msg, "[REDACTED]") {
			t.Errorf("expected redacted provider message, got %q", msg)
		}
		assertNoSecrets(t, "response", rec.Body.String())
		assertNoSecrets(t, "logs", tp.logs.String())
	})

	t.Run("Provider Error Falls Back To Error Field", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client"}`))
		})
		rec := tp.do(http.MethodPost, "/trakt/auth/token", `{"code":"c"}`, nil)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if msg := decodeError(t, rec); msg != "invalid_client" {
			t.Errorf("expected invalid_client, got %q", msg)
		}
	})

	t.Run("Missing Access Token Is Bad Gateway", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"token_type":"Bearer"}`))
		})
		rec := tp.do(http.MethodPost, "/spotify/auth/token", `{"code":"c"}`, nil)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens)
		tp.upstream.srv.Close()

		rec := tp.do(http.MethodPost, "/spotify/auth/token", `{"code":"c"}`, nil)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if msg := decodeError(t, rec); msg == "" {
			t.Error("expected error message")
		}
		assertNoSecrets(t, "response", rec.Body.String())
		assertNoSecrets(t, "logs", tp.logs.String())
	})

	t.Run("Missing Credentials", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens, func(c *shared.Config) {
			c.Credentials.Trakt.ClientSecret = ""
		})
		rec := tp.do(http.MethodPost, "/trakt/auth/token", `{"code":"c"}`, nil)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if tp.upstream.count() != 0 {
			t.Error("expected no upstream call")
		}
	})
}

func TestProxyRefresh(t *testing.T) {
	t.Run("Sends Refresh Grant", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access_token":"access-2","expires_in":3600}`))
		})
		rec := tp.do(http.MethodPost, "/spotify/auth/refresh", `{"refresh_token":"refresh-1"}`, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		form, _ := url.ParseQuery(tp.upstream.last(t).Body)
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected refresh grant: %v", form)
		}
		assertNoSecrets(t, "response", rec.Body.String())
	})

	t.Run("Missing Refresh Token", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens)
		rec := tp.do(http.MethodPost, "/trakt/auth/refresh", `{"code":"wrong-field"}`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Provider Echoing Secret Is Redacted", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access_token":"a","refresh_token":"r","debug":"` + traktSecret + `"}`))
		})
		rec := tp.do(http.MethodPost, "/trakt/auth/refresh", `{"refresh_token":"r0"}`, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		assertNoSecrets(t, "response", rec.Body.String())
	})
}

func TestProxyPassthrough(t *testing.T) {
	t.Run("Spotify Forwards Bearer Token And Path", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"user-1"}`))
		})
		rec := tp.do(http.MethodGet, "/spotify/me/top/artists?limit=5", "", map[string]string{
			"Authorization": "Bearer user-token",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		req := tp.upstream.last(t)
		if req.Path != "/spotify/api/me/top/artists" {
			t.Errorf("expected mapped path, got %s", req.Path)
		}
		if req.Query.Get("limit") != "5" {
			t.Errorf("expected query preserved, got %v", req.Query)
		}
		if req.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("expected bearer forwarded, got %q", req.Header.Get("Authorization"))
		}
		if rec.Body.String() != `{"id":"user-1"}` {
			t.Errorf("expected body relayed, got %s", rec.Body.String())
		}
	})

	t.Run("Relays Unauthorized Without Retry", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
		})
		rec := tp.do(http.MethodGet, "/spotify/me", "", map[string]string{"Authorization": "Bearer old"})

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if tp.upstream.count() != 1 {
			t.Errorf("expected exactly one upstream call, got %d", tp.upstream.count())
		}
	})

	t.Run("Forwards Method And Body", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		rec := tp.do(http.MethodPost, "/trakt/sync/watchlist", `{"shows":[]}`, map[string]string{
			"Content-Type": "application/json",
		})

		if rec.Code != http.StatusCreated {
			t.Errorf("expected 201, got %d", rec.Code)
		}
		req := tp.upstream.last(t)
		if req.Method != http.MethodPost || req.Body != `{"shows":[]}` {
			t.Errorf("unexpected forwarded request: %s %q", req.Method, req.Body)
		}
	})

	t.Run("Trakt Adds API Headers", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})
		tp.do(http.MethodGet, "/trakt/sync/watchlist/shows", "", map[string]string{"Authorization": "Bearer t"})

		req := tp.upstream.last(t)
		if req.Header.Get("trakt-api-version") != "2" {
			t.Errorf("expected trakt-api-version 2, got %q", req.Header.Get("trakt-api-version"))
		}
		if req.Header.Get("trakt-api-key") != "trakt-client" {
			t.Errorf("expected trakt-api-key client id, got %q", req.Header.Get("trakt-api-key"))
		}
		if req.Path != "/trakt/api/sync/watchlist/shows" {
			t.Errorf("unexpected path %s", req.Path)
		}
	})

	t.Run("Steam Injects Key And Redacts Echo", func(t *testing.T) {
		tp := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"request":"` + r.URL.RawQuery + `"}`))
		})
		rec := tp.do(http.MethodGet, "/steam/IPlayerService/GetOwnedGames/v1/?steamid=7656", "", nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		req := tp.upstream.last(t)
		if req.Query.Get("key") != steamKey {
			t.Errorf("expected key injected, got %q", req.Query.Get("key"))
		}
		if req.Query.Get("steamid") != "7656" {
			t.Errorf("expected steamid preserved, got %v", req.Query)
		}
		assertNoSecrets(t, "response", rec.Body.String())
	})

	t.Run("Steam Without Key", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens, func(c *shared.Config) {
			c.Credentials.Steam.APIKey = ""
		})
		rec := tp.do(http.MethodGet, "/steam/ISteamUser/GetPlayerSummaries/v2/", "", nil)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
		if tp.upstream.count() != 0 {
			t.Error("expected no upstream call")
		}
	})

	t.Run("Transport Failure Is Bad Gateway", func(t *testing.T) {
		tp := newTestProxy(t, writeTokens)
		tp.upstream.srv.Close()

		rec := tp.do(http.MethodGet, "/steam/ISteamUser/GetPlayerSummaries/v2/?steamids=1", "", nil)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		assertNoSecrets(t, "response", rec.Body.String())
		assertNoSecrets(t, "logs", tp.logs.String())
	})
}

func TestProxyNotFound(t *testing.T) {
	tp := newTestProxy(t, writeTokens)
	rec := tp.do(http.MethodGet, "/youtube/videos", "", nil)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg == "" {
		t.Error("expected error envelope")
	}
}

func TestProviderError(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"Description Wins", `{"error":"invalid_grant","error_description":"Invalid code"}`, 400, "Invalid code"},
		{"Error String", `{"error":"invalid_client"}`, 401, "invalid_client"},
		{"Nested Error", `{"error":{"status":403,"message":"Forbidden scope"}}`, 403, "Forbidden scope"},
		{"Not JSON", `<html>oops</html>`, 502, "Bad Gateway"},
		{"Unknown Status", ``, 599, "provider returned status 599"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := providerError([]byte(tt.body), tt.status); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
