// package services defines the provider catalogue and typed clients for data requests made through the backend proxy
//
// Spotify, Trakt, Steam
package services

import (
	"fmt"
	"slices"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/shared"
)

// Provider describes where a service authorizes, issues tokens and serves its REST API.
type Provider struct {
	Service      models.Service
	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string
	Scopes       []string
	// ExtraAuthParams are appended to the authorize URL.
	ExtraAuthParams map[string]string
	// FormToken selects an application/x-www-form-urlencoded token request instead of JSON.
	FormToken bool
}

// Providers is the production provider catalogue. The proxy accepts overrides for tests.
var Providers = map[models.Service]Provider{
	models.ServiceSpotify: {
		Service:      models.ServiceSpotify,
		AuthorizeURL: "https://accounts.spotify.com/authorize",
		TokenURL:     "https://accounts.spotify.com/api/token",
		APIBaseURL:   "https://api.spotify.com/v1",
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"user-top-read",
			"user-read-recently-played",
		},
		ExtraAuthParams: map[string]string{"show_dialog": "true"},
		FormToken:       true,
	},
	models.ServiceTrakt: {
		Service:      models.ServiceTrakt,
		AuthorizeURL: "https://trakt.tv/oauth/authorize",
		TokenURL:     "https://api.trakt.tv/oauth/token",
		APIBaseURL:   "https://api.trakt.tv",
	},
	models.ServiceSteam: {
		Service:    models.ServiceSteam,
		APIBaseURL: "https://api.steampowered.com",
	},
}

// LookupProvider returns the catalogue entry for service.
func LookupProvider(service models.Service) (Provider, error) {
	p, ok := Providers[service]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", shared.ErrUnknownService, service)
	}
	return p, nil
}

// OAuthConfig builds the [models.OAuthConfig] for this provider. Pass an empty secret outside the proxy.
func (p Provider) OAuthConfig(clientID, clientSecret, redirectURI string) models.OAuthConfig {
	return models.OAuthConfig{
		Service:      p.Service,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthorizeURL: p.AuthorizeURL,
		TokenURL:     p.TokenURL,
		RedirectURI:  redirectURI,
		Scopes:       slices.Clone(p.Scopes),
	}
}
