package models

import (
	"encoding/json"
	"fmt"

	"github.com/shibest/mycelius/internal/shared"
)

// TokenResponse is a provider's reply to an authorization code or refresh token grant.
type TokenResponse interface {
	Provider() Service
	// Tokens returns the access token and, when the provider issued one, the refresh token.
	Tokens() (access, refresh string)
	Validate() error
}

// SpotifyTokenResponse is returned by https://accounts.spotify.com/api/token.
//
// Refresh grants may omit refresh_token, in which case the previous one stays valid.
type SpotifyTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (r *SpotifyTokenResponse) Provider() Service        { return ServiceSpotify }
func (r *SpotifyTokenResponse) Tokens() (string, string) { return r.AccessToken, r.RefreshToken }
func (r *SpotifyTokenResponse) Validate() error          { return requireAccessToken(r.AccessToken) }

// TraktTokenResponse is returned by https://api.trakt.tv/oauth/token. Trakt always rotates the refresh token.
type TraktTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

func (r *TraktTokenResponse) Provider() Service        { return ServiceTrakt }
func (r *TraktTokenResponse) Tokens() (string, string) { return r.AccessToken, r.RefreshToken }
func (r *TraktTokenResponse) Validate() error          { return requireAccessToken(r.AccessToken) }

// ParseTokenResponse decodes body into the response type for service and validates it.
func ParseTokenResponse(service Service, body []byte) (TokenResponse, error) {
	var resp TokenResponse
	switch service {
	case ServiceSpotify:
		resp = &SpotifyTokenResponse{}
	case ServiceTrakt:
		resp = &TraktTokenResponse{}
	default:
		return nil, fmt.Errorf("%w: %q has no token endpoint", shared.ErrUnknownService, service)
	}

	if err := json.Unmarshal(body, resp); err != nil {
		return nil, fmt.Errorf("%w: malformed token response: %v", shared.ErrAuthFailed, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

func requireAccessToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: token response has no access_token", shared.ErrAuthFailed)
	}
	return nil
}
