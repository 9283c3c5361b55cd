// Spotify data requests made through the backend proxy
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/shared"
)

// Spotify time ranges accepted by the top items endpoints.
const (
	TimeRangeShort  = "short_term"
	TimeRangeMedium = "medium_term"
	TimeRangeLong   = "long_term"
)

var timeRanges = []string{TimeRangeShort, TimeRangeMedium, TimeRangeLong}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Popularity int            `json:"popularity"`
	Images     []SpotifyImage `json:"images"`
	URI        string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	Images      []SpotifyImage  `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// ArtistNames joins the credited artists.
func (t SpotifyTrack) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// SpotifyPage is Spotify's offset-based paging object.
type SpotifyPage[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// SpotifyPlayHistory is one entry of the recently played list.
type SpotifyPlayHistory struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt string       `json:"played_at"`
}

// SpotifyRecentlyPlayed is the cursor-paged recently played response.
type SpotifyRecentlyPlayed struct {
	Items   []SpotifyPlayHistory `json:"items"`
	Next    *string              `json:"next"`
	Limit   int                  `json:"limit"`
	Cursors struct {
		After  string `json:"after"`
		Before string `json:"before"`
	} `json:"cursors"`
}

// SpotifyClient fetches Spotify resources through the backend proxy.
type SpotifyClient struct {
	api *APIService
}

// NewSpotifyClient creates a [SpotifyClient] over api.
func NewSpotifyClient(api *APIService) *SpotifyClient {
	return &SpotifyClient{api: api}
}

// TopArtists returns the user's top artists for timeRange (default medium_term).
func (c *SpotifyClient) TopArtists(ctx context.Context, token string, limit int, timeRange string) (*SpotifyPage[SpotifyArtist], error) {
	q, err := topItemsQuery(limit, timeRange)
	if err != nil {
		return nil, err
	}
	page, err := Fetch[SpotifyPage[SpotifyArtist]](ctx, c.api, models.ServiceSpotify, "/me/top/artists?"+q, token)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// TopTracks returns the user's top tracks for timeRange (default medium_term).
func (c *SpotifyClient) TopTracks(ctx context.Context, token string, limit int, timeRange string) (*SpotifyPage[SpotifyTrack], error) {
	q, err := topItemsQuery(limit, timeRange)
	if err != nil {
		return nil, err
	}
	page, err := Fetch[SpotifyPage[SpotifyTrack]](ctx, c.api, models.ServiceSpotify, "/me/top/tracks?"+q, token)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// UserProfile retrieves the current authenticated user's profile.
func (c *SpotifyClient) UserProfile(ctx context.Context, token string) (*SpotifyUser, error) {
	user, err := Fetch[SpotifyUser](ctx, c.api, models.ServiceSpotify, "/me", token)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RecentlyPlayed returns up to limit recently played tracks.
func (c *SpotifyClient) RecentlyPlayed(ctx context.Context, token string, limit int) (*SpotifyRecentlyPlayed, error) {
	q := url.Values{"limit": {strconv.Itoa(clampLimit(limit))}}
	recent, err := Fetch[SpotifyRecentlyPlayed](ctx, c.api, models.ServiceSpotify, "/me/player/recently-played?"+q.Encode(), token)
	if err != nil {
		return nil, err
	}
	return &recent, nil
}

// Genres collects the distinct genres of artists in first-seen order.
func Genres(artists []SpotifyArtist) []string {
	var genres []string
	for _, a := range artists {
		for _, g := range a.Genres {
			if !slices.Contains(genres, g) {
				genres = append(genres, g)
			}
		}
	}
	return genres
}

func topItemsQuery(limit int, timeRange string) (string, error) {
	if timeRange == "" {
		timeRange = TimeRangeMedium
	}
	if !slices.Contains(timeRanges, timeRange) {
		return "", fmt.Errorf("%w: time range %q", shared.ErrInvalidArgument, timeRange)
	}
	q := url.Values{
		"limit":      {strconv.Itoa(clampLimit(limit))},
		"time_range": {timeRange},
	}
	return q.Encode(), nil
}

// clampLimit keeps page sizes within Spotify's 1..50 window, defaulting to 20.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return min(limit, 50)
}
