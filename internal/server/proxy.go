package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
)

const maxUpstreamBytes = 10 << 20

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Proxy holds the provider client secrets and brokers token grants and authenticated API calls
// on behalf of clients that must never see those secrets.
type Proxy struct {
	providers   map[models.Service]services.Provider
	credentials shared.CredentialsConfig
	server      shared.ServerConfig
	client      *http.Client
	limiters    *Limiters
	redactor    *Redactor
	logger      *log.Logger
	now         func() time.Time
}

// ProxyOption configures a [Proxy].
type ProxyOption func(*Proxy)

// WithProviders replaces the provider catalogue, e.g. to point at test servers.
func WithProviders(providers map[models.Service]services.Provider) ProxyOption {
	return func(p *Proxy) { p.providers = providers }
}

// WithHTTPClient sets the client used for upstream requests.
func WithHTTPClient(c *http.Client) ProxyOption {
	return func(p *Proxy) { p.client = c }
}

// WithProxyLogger sets the proxy's logger.
func WithProxyLogger(l *log.Logger) ProxyOption {
	return func(p *Proxy) { p.logger = l }
}

// NewProxy creates a proxy from cfg. Upstream requests time out after cfg.Server.Timeout and are
// rate limited per provider.
func NewProxy(cfg *shared.Config, opts ...ProxyOption) *Proxy {
	p := &Proxy{
		providers:   services.Providers,
		credentials: cfg.Credentials,
		server:      cfg.Server,
		client:      &http.Client{Timeout: cfg.Server.GetTimeout()},
		limiters:    NewLimiters(cfg.Server.RateLimit),
		redactor: NewRedactor(
			cfg.Credentials.Spotify.ClientSecret,
			cfg.Credentials.Trakt.ClientSecret,
			cfg.Credentials.Steam.APIKey,
		),
		logger: shared.NewSilentLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Router returns a [BasicRouter] with the proxy routes and middleware stack installed.
func (p *Proxy) Router() *BasicRouter {
	r := NewBasicRouter()
	r.Use(
		RecoveryMiddleware(p.logger),
		CorrelationIDMiddleware,
		LoggingMiddleware(p.logger),
		CORSMiddleware("*"),
	)
	p.Register(r)
	return r
}

// Register installs the proxy routes on r:
//
//	GET  /health
//	POST /{spotify,trakt}/auth/token    {code}
//	POST /{spotify,trakt}/auth/refresh  {refresh_token}
//	*    /{spotify,trakt,steam}/...     pass-through
func (p *Proxy) Register(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(p.health))

	for _, service := range models.OAuthServices {
		prefix := "/" + string(service)
		r.Handle(http.MethodPost, prefix+"/auth/token", p.tokenHandler(service, "authorization_code", "code"))
		r.Handle(http.MethodPost, prefix+"/auth/refresh", p.tokenHandler(service, "refresh_token", "refresh_token"))
	}

	for _, service := range []models.Service{models.ServiceSpotify, models.ServiceTrakt, models.ServiceSteam} {
		r.Handle("", "/"+string(service)+"/", p.passthroughHandler(service))
	}

	r.Handle("", "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	}))
}

func (p *Proxy) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: p.now().UTC().Format(time.RFC3339Nano),
	})
}

// tokenHandler relays an authorization_code or refresh_token grant, adding the client credentials.
//
// Provider errors keep the provider's status with an {error} envelope, transport failures are 500,
// and a 2xx body without an access_token is 502.
func (p *Proxy) tokenHandler(service models.Service, grant, field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if !DecodeJSON(w, r, &body) {
			return
		}
		value := body[field]
		if value == "" {
			WriteError(w, http.StatusBadRequest, "Missing "+field)
			return
		}

		clientID, clientSecret := p.clientCredentials(service)
		if clientID == "" || clientSecret == "" {
			p.logger.Error("missing client credentials", "service", service)
			WriteError(w, http.StatusInternalServerError, fmt.Sprintf("%s credentials are not configured", service))
			return
		}

		params := map[string]string{
			"grant_type":    grant,
			field:           value,
			"client_id":     clientID,
			"client_secret": clientSecret,
			"redirect_uri":  p.server.RedirectURI(string(service)),
		}

		req, err := p.newTokenRequest(r.Context(), p.providers[service], params)
		if err != nil {
			p.logger.Error("failed to build token request", "service", service, "err", p.redactor.String(err.Error()))
			WriteError(w, http.StatusInternalServerError, "Token request failed")
			return
		}

		resp, data, err := p.do(r.Context(), service, req)
		if err != nil {
			p.logger.Error("token request failed", "service", service, "grant", grant, "err", p.redactor.String(err.Error()))
			WriteError(w, http.StatusInternalServerError, "Token request failed")
			return
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			p.logger.Warn("provider rejected grant", "service", service, "grant", grant, "status", resp.StatusCode)
			WriteError(w, resp.StatusCode, p.redactor.String(providerError(data, resp.StatusCode)))
			return
		}

		if _, err := models.ParseTokenResponse(service, data); err != nil {
			p.logger.Error("invalid token response", "service", service, "err", err)
			WriteError(w, http.StatusBadGateway, "Invalid token response from provider")
			return
		}

		p.relay(w, resp.StatusCode, resp.Header, data)
	}
}

// passthroughHandler forwards /{service}/rest to the provider API root, adding the provider's
// static headers. Statuses, including 401, are relayed unchanged and never retried.
func (p *Proxy) passthroughHandler(service models.Service) http.HandlerFunc {
	prefix := "/" + string(service)
	return func(w http.ResponseWriter, r *http.Request) {
		provider := p.providers[service]
		target, err := url.Parse(provider.APIBaseURL + strings.TrimPrefix(r.URL.EscapedPath(), prefix))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid path")
			return
		}

		q := r.URL.Query()
		if service == models.ServiceSteam {
			if p.credentials.Steam.APIKey == "" {
				WriteError(w, http.StatusServiceUnavailable, "Steam API key is not configured")
				return
			}
			q.Set("key", p.credentials.Steam.APIKey)
		}
		target.RawQuery = q.Encode()

		var body io.Reader
		if r.Body != nil && r.ContentLength != 0 {
			body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		for _, h := range []string{"Authorization", "Content-Type", "Accept"} {
			if v := r.Header.Get(h); v != "" {
				req.Header.Set(h, v)
			}
		}

		switch service {
		case models.ServiceTrakt:
			req.Header.Set("trakt-api-version", "2")
			req.Header.Set("trakt-api-key", p.credentials.Trakt.ClientID)
		case models.ServiceSteam:
			req.Header.Del("Authorization")
		}

		resp, data, err := p.do(r.Context(), service, req)
		if err != nil {
			p.logger.Error("upstream request failed", "service", service, "err", p.redactor.String(err.Error()))
			WriteError(w, http.StatusBadGateway, "Upstream request failed")
			return
		}

		p.relay(w, resp.StatusCode, resp.Header, data)
	}
}

func (p *Proxy) clientCredentials(service models.Service) (string, string) {
	switch service {
	case models.ServiceSpotify:
		return p.credentials.Spotify.ClientID, p.credentials.Spotify.ClientSecret
	case models.ServiceTrakt:
		return p.credentials.Trakt.ClientID, p.credentials.Trakt.ClientSecret
	default:
		return "", ""
	}
}

func (p *Proxy) newTokenRequest(ctx context.Context, provider services.Provider, params map[string]string) (*http.Request, error) {
	var (
		body        []byte
		contentType string
	)
	if provider.FormToken {
		form := url.Values{}
		for k, v := range params {
			form.Set(k, v)
		}
		body, contentType = []byte(form.Encode()), "application/x-www-form-urlencoded"
	} else {
		var err error
		if body, err = json.Marshal(params); err != nil {
			return nil, err
		}
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do waits for the provider's rate limiter, sends req and reads the body.
func (p *Proxy) do(ctx context.Context, service models.Service, req *http.Request) (*http.Response, []byte, error) {
	if err := p.limiters.Wait(ctx, service); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	return resp, data, nil
}

// relay writes an upstream response back to the caller with secrets scrubbed.
func (p *Proxy) relay(w http.ResponseWriter, status int, header http.Header, body []byte) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if v := header.Get("Retry-After"); v != "" {
		w.Header().Set("Retry-After", v)
	}
	w.WriteHeader(status)
	w.Write(p.redactor.Bytes(body))
}

// providerError picks the most descriptive message out of an OAuth error body.
func providerError(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error_description", "error", "error.message", "message"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("provider returned status %d", status)
}
