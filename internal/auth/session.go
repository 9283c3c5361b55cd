package auth

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/repositories"
	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
)

// Session owns the token store and one [Controller] per OAuth provider for the lifetime of the app.
type Session struct {
	store       repositories.TokenStore
	controllers map[models.Service]*Controller

	mu      sync.Mutex
	closers []func() error
	closed  bool
}

// NewSession creates controllers for every OAuth provider using the client IDs and redirect URIs in cfg.
func NewSession(cfg *shared.Config, store repositories.TokenStore, api *services.APIService, opts ...Option) *Session {
	clientIDs := map[models.Service]string{
		models.ServiceSpotify: cfg.Credentials.Spotify.ClientID,
		models.ServiceTrakt:   cfg.Credentials.Trakt.ClientID,
	}

	s := &Session{store: store, controllers: make(map[models.Service]*Controller)}
	for _, service := range models.OAuthServices {
		provider := services.Providers[service]
		s.controllers[service] = NewController(provider, clientIDs[service], cfg.Server.RedirectURI(string(service)), store, api, opts...)
	}
	return s
}

// Controller returns the controller for service.
func (s *Session) Controller(service models.Service) (*Controller, error) {
	c, ok := s.controllers[service]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no OAuth flow", shared.ErrUnknownService, service)
	}
	return c, nil
}

func (s *Session) Spotify() *Controller { return s.controllers[models.ServiceSpotify] }
func (s *Session) Trakt() *Controller   { return s.controllers[models.ServiceTrakt] }

// Store returns the session's token store.
func (s *Session) Store() repositories.TokenStore { return s.store }

// OnClose registers fn to run when the session closes. Functions run in reverse registration order.
func (s *Session) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Close releases everything registered with [Session.OnClose]. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := slices.Clone(s.closers)
	s.mu.Unlock()

	var errs []error
	for _, fn := range slices.Backward(closers) {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
