// package models defines the data model for the Mycelius connector service
package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shibest/mycelius/internal/shared"
	"golang.org/x/oauth2"
)

// Service identifies an external provider.
type Service string

const (
	ServiceSpotify Service = "spotify"
	ServiceTrakt   Service = "trakt"
	ServiceSteam   Service = "steam"
)

// OAuthServices lists the providers that use the authorization code flow.
var OAuthServices = []Service{ServiceSpotify, ServiceTrakt}

// ParseService converts a name such as "Spotify" into a [Service].
func ParseService(name string) (Service, error) {
	s := Service(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case ServiceSpotify, ServiceTrakt, ServiceSteam:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrUnknownService, name)
	}
}

// UsesOAuth reports whether the service issues OAuth tokens.
func (s Service) UsesOAuth() bool {
	return slices.Contains(OAuthServices, s)
}

func (s Service) String() string { return string(s) }

// AccessTokenKey and RefreshTokenKey return the persisted key names for this service's tokens.
func (s Service) AccessTokenKey() string  { return string(s) + "_access_token" }
func (s Service) RefreshTokenKey() string { return string(s) + "_refresh_token" }

// TokenRecord is the token pair held for one provider.
type TokenRecord struct {
	Service      Service   `json:"service"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ObtainedAt   time.Time `json:"obtained_at"`
}

// Validate checks that the record names an OAuth service and carries an access token.
func (r *TokenRecord) Validate() error {
	if !r.Service.UsesOAuth() {
		return fmt.Errorf("%w: %q does not use OAuth", shared.ErrUnknownService, r.Service)
	}
	if r.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}
	return nil
}

// HasRefreshToken reports whether the provider issued a refresh token.
func (r *TokenRecord) HasRefreshToken() bool {
	return r != nil && r.RefreshToken != ""
}

// OAuthConfig describes one provider's authorization endpoints and client credentials.
//
// ClientSecret is empty everywhere except inside the backend proxy.
type OAuthConfig struct {
	Service      Service
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	RedirectURI  string
	Scopes       []string
}

// OAuth2 converts the config into an [oauth2.Config] for building authorize URLs.
func (c OAuthConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthorizeURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Profile is the local user's interest profile used as the similarity query.
type Profile struct {
	Hobbies       string   `json:"hobbies"`
	MusicGenres   []string `json:"musicGenres"`
	FavoriteGames []string `json:"favoriteGames"`
	FavoriteShows []string `json:"favoriteShows"`
}

// Canonical returns a copy with every list sorted, so that equal profiles serialize identically.
func (p Profile) Canonical() Profile {
	sorted := func(in []string) []string {
		out := slices.Clone(in)
		if out == nil {
			out = []string{}
		}
		slices.Sort(out)
		return out
	}
	return Profile{
		Hobbies:       p.Hobbies,
		MusicGenres:   sorted(p.MusicGenres),
		FavoriteGames: sorted(p.FavoriteGames),
		FavoriteShows: sorted(p.FavoriteShows),
	}
}

// IsEmpty reports whether the profile has no content at all.
func (p Profile) IsEmpty() bool {
	return strings.TrimSpace(p.Hobbies) == "" &&
		len(p.MusicGenres) == 0 && len(p.FavoriteGames) == 0 && len(p.FavoriteShows) == 0
}

// CandidateProfile is another user scored against the local profile. Username is unique within a batch.
type CandidateProfile struct {
	Username    string   `json:"username"`
	Personality string   `json:"personality"`
	Interests   []string `json:"interests"`
}

// ValidateCandidates rejects batches with empty or duplicate usernames.
func ValidateCandidates(candidates []CandidateProfile) error {
	seen := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if c.Username == "" {
			return fmt.Errorf("%w: candidate %d has no username", shared.ErrInvalidInput, i+1)
		}
		if _, dup := seen[c.Username]; dup {
			return fmt.Errorf("%w: duplicate candidate %q", shared.ErrInvalidInput, c.Username)
		}
		seen[c.Username] = struct{}{}
	}
	return nil
}

// SimilarityCacheEntry is a cached batch of scores. It is stored as {"timestamp": <unix ms>, "scores": {...}}.
type SimilarityCacheEntry struct {
	Key       string         `json:"-"`
	Timestamp int64          `json:"timestamp"`
	Scores    map[string]int `json:"scores"`
}

// NewSimilarityCacheEntry stamps scores with the given time.
func NewSimilarityCacheEntry(key string, scores map[string]int, at time.Time) *SimilarityCacheEntry {
	return &SimilarityCacheEntry{Key: key, Timestamp: at.UnixMilli(), Scores: scores}
}

// CachedAt returns the time the scores were computed.
func (e *SimilarityCacheEntry) CachedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Expired reports whether the entry is at least ttl old at now.
func (e *SimilarityCacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt()) >= ttl
}

// DecodeSimilarityCacheEntry parses a stored cache value.
func DecodeSimilarityCacheEntry(key string, data []byte) (*SimilarityCacheEntry, error) {
	var e SimilarityCacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	e.Key = key
	return &e, nil
}
