package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/repositories"
	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
)

// State is a controller's position in the login lifecycle.
type State int

const (
	StateLoggedOut State = iota
	StateAuthorizing
	StateExchanging
	StateLoggedIn
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged out"
	case StateAuthorizing:
		return "authorizing"
	case StateExchanging:
		return "exchanging"
	case StateLoggedIn:
		return "logged in"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller runs the authorization code flow for one provider. Token exchange and refresh go
// through the backend proxy, so the controller never sees the client secret.
type Controller struct {
	mu        sync.Mutex
	refreshMu sync.Mutex

	config    models.OAuthConfig
	extra     map[string]string
	store     repositories.TokenStore
	api       *services.APIService
	navigate  shared.Navigator
	logger    *log.Logger
	now       func() time.Time
	state     State
	authState string
	usedCodes map[string]struct{}
}

// Option configures a [Controller].
type Option func(*Controller)

// WithNavigator sets how [Controller.Login] sends the user to the authorize URL.
func WithNavigator(n shared.Navigator) Option {
	return func(c *Controller) { c.navigate = n }
}

// WithLogger sets the controller's logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides time.Now for obtained_at stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller for provider. It starts logged in when store already holds a record.
func NewController(provider services.Provider, clientID, redirectURI string, store repositories.TokenStore, api *services.APIService, opts ...Option) *Controller {
	c := &Controller{
		config:    provider.OAuthConfig(clientID, "", redirectURI),
		extra:     provider.ExtraAuthParams,
		store:     store,
		api:       api,
		logger:    shared.NewSilentLogger(),
		now:       time.Now,
		usedCodes: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = shared.WithLogger(c.logger, "service", c.config.Service)

	if record, err := store.Get(c.config.Service); err == nil && record != nil {
		c.state = StateLoggedIn
	}
	return c
}

// Service returns the provider this controller authenticates against.
func (c *Controller) Service() models.Service { return c.config.Service }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ExpectedState returns the state parameter issued by the most recent [Controller.Login].
func (c *Controller) ExpectedState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authState
}

// Login builds the authorize URL with a fresh state value, hands it to the navigator and moves to
// [StateAuthorizing]. Calling it again replaces the pending state; the last call wins.
//
// The URL is returned even when navigation fails so it can be shown to the user.
func (c *Controller) Login(ctx context.Context) (string, error) {
	state := shared.GenerateID()

	opts := make([]oauth2.AuthCodeOption, 0, len(c.extra))
	for k, v := range c.extra {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	authURL := c.config.OAuth2().AuthCodeURL(state, opts...)

	c.mu.Lock()
	c.authState = state
	c.state = StateAuthorizing
	c.mu.Unlock()

	c.logger.Info("starting authorization")
	if c.navigate != nil {
		if err := c.navigate(authURL); err != nil {
			return authURL, fmt.Errorf("failed to open authorize url: %w", err)
		}
	}
	return authURL, nil
}

// HandleCallback exchanges code for tokens through the proxy. It returns true once the record is stored.
//
// Any failure returns false and leaves the store untouched. A code that was already presented is
// rejected without a network call, since providers only accept each code once.
func (c *Controller) HandleCallback(ctx context.Context, code string) bool {
	c.mu.Lock()
	if code == "" {
		c.mu.Unlock()
		c.logger.Warn("callback without code")
		return false
	}
	if _, used := c.usedCodes[code]; used {
		c.mu.Unlock()
		c.logger.Warn("ignoring repeated callback", "err", shared.ErrCodeReused)
		return false
	}
	c.usedCodes[code] = struct{}{}
	c.state = StateExchanging
	c.mu.Unlock()

	access, refresh, err := c.post(ctx, "/auth/token", map[string]string{"code": code})
	if err != nil {
		c.logger.Error("code exchange failed", "err", err)
		c.settle()
		return false
	}

	record := &models.TokenRecord{AccessToken: access, RefreshToken: refresh, ObtainedAt: c.now()}
	if err := c.store.Set(c.config.Service, record); err != nil {
		c.logger.Error("failed to store tokens", "err", err)
		c.settle()
		return false
	}

	c.setState(StateLoggedIn)
	c.logger.Info("logged in", "refresh_token", refresh != "")
	return true
}

// RefreshAccessToken trades the stored refresh token for a new access token. A refresh token
// returned by the provider replaces the stored one; otherwise the existing one is kept.
//
// Without a refresh token, or on any failure, the controller logs out and returns false.
func (c *Controller) RefreshAccessToken(ctx context.Context) bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	record, err := c.store.Get(c.config.Service)
	if err != nil || !record.HasRefreshToken() {
		c.logger.Warn("no refresh token, logging out", "err", err)
		c.Logout()
		return false
	}

	c.setState(StateRefreshing)

	access, refresh, err := c.post(ctx, "/auth/refresh", map[string]string{"refresh_token": record.RefreshToken})
	if err != nil {
		c.logger.Error("refresh failed, logging out", "err", err)
		c.Logout()
		return false
	}
	if refresh == "" {
		refresh = record.RefreshToken
	}

	updated := &models.TokenRecord{AccessToken: access, RefreshToken: refresh, ObtainedAt: c.now()}
	if err := c.store.Set(c.config.Service, updated); err != nil {
		c.logger.Error("failed to store refreshed token, logging out", "err", err)
		c.Logout()
		return false
	}

	c.setState(StateLoggedIn)
	c.logger.Info("access token refreshed")
	return true
}

// Logout clears the stored record. Logging out twice is the same as logging out once.
func (c *Controller) Logout() error {
	c.setState(StateLoggedOut)
	if err := c.store.Clear(c.config.Service); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// AccessToken returns the stored access token.
func (c *Controller) AccessToken() (string, error) {
	record, err := c.store.Get(c.config.Service)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, c.config.Service)
	}
	return record.AccessToken, nil
}

// Record returns the stored token record, or nil when logged out.
func (c *Controller) Record() (*models.TokenRecord, error) {
	return c.store.Get(c.config.Service)
}

// post sends body to /{service}{path} on the proxy and extracts the token pair from a 2xx reply.
func (c *Controller) post(ctx context.Context, path string, body map[string]string) (string, string, error) {
	resp, err := c.api.PostJSON(ctx, "/"+string(c.config.Service)+path, body)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if !resp.OK() {
		return "", "", fmt.Errorf("%w: proxy returned %d %s", shared.ErrAuthFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if !gjson.ValidBytes(resp.Body) {
		return "", "", fmt.Errorf("%w: malformed token response", shared.ErrAuthFailed)
	}

	access := gjson.GetBytes(resp.Body, "access_token")
	if access.Type != gjson.String || access.Str == "" {
		return "", "", fmt.Errorf("%w: token response has no access_token", shared.ErrAuthFailed)
	}
	return access.Str, gjson.GetBytes(resp.Body, "refresh_token").String(), nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// settle returns to LoggedIn when an earlier record is still stored, and LoggedOut otherwise.
func (c *Controller) settle() {
	record, err := c.store.Get(c.config.Service)
	if err == nil && record != nil {
		c.setState(StateLoggedIn)
		return
	}
	c.setState(StateLoggedOut)
}
