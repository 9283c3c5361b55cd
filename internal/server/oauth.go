package server

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/shibest/mycelius/internal/models"
)

// OAuthResult carries the authorization code delivered to the redirect URI.
type OAuthResult struct {
	Code string
	err  error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler listens on /callback/{service} for the provider redirect.
//
// It validates the state parameter, accepts a single callback, and delivers the code through
// [OAuthHandler.Result]. The code exchange itself happens in the flow controller via the proxy.
type OAuthHandler struct {
	service     models.Service
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a callback handler for service expecting state.
func NewOAuthHandler(service models.Service, state string) *OAuthHandler {
	return &OAuthHandler{
		service:    service,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback/" + string(h.service)}
}

// ServeHTTP handles the provider redirect.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("authorization denied: %s - %s", query.Get("error"), query.Get("error_description"))
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(OAuthResult{Code: code})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Mycelius</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
    <h1>✓ %s connected</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`, h.service)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// CallbackAddr returns the host:port a local callback listener should bind for appURL.
func CallbackAddr(appURL string) (string, error) {
	u, err := url.Parse(appURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid app url %q", appURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
