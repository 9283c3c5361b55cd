// Trakt data requests made through the backend proxy
//
// Response types based on https://trakt.docs.apiary.io/
package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/shibest/mycelius/internal/models"
)

// TraktIDs holds the cross-database identifiers Trakt attaches to media.
type TraktIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug"`
	IMDB  string `json:"imdb"`
	TMDB  int    `json:"tmdb"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// TraktShow represents a show.
type TraktShow struct {
	Title string   `json:"title"`
	Year  int      `json:"year"`
	IDs   TraktIDs `json:"ids"`
}

// TraktMovie represents a movie.
type TraktMovie struct {
	Title string   `json:"title"`
	Year  int      `json:"year"`
	IDs   TraktIDs `json:"ids"`
}

// TraktWatchlistItem is one watchlist entry; exactly one of Show or Movie is set.
type TraktWatchlistItem struct {
	Rank     int         `json:"rank"`
	ID       int64       `json:"id"`
	ListedAt string      `json:"listed_at"`
	Notes    string      `json:"notes,omitempty"`
	Type     string      `json:"type"`
	Show     *TraktShow  `json:"show,omitempty"`
	Movie    *TraktMovie `json:"movie,omitempty"`
}

// Title returns the show or movie title.
func (i TraktWatchlistItem) Title() string {
	switch {
	case i.Show != nil:
		return i.Show.Title
	case i.Movie != nil:
		return i.Movie.Title
	default:
		return ""
	}
}

// Year returns the show or movie release year.
func (i TraktWatchlistItem) Year() int {
	switch {
	case i.Show != nil:
		return i.Show.Year
	case i.Movie != nil:
		return i.Movie.Year
	default:
		return 0
	}
}

// TraktWatchlist is the combined shows and movies watchlist.
type TraktWatchlist struct {
	Shows  []TraktWatchlistItem `json:"shows"`
	Movies []TraktWatchlistItem `json:"movies"`
}

// TraktUserSettings is the subset of /users/settings the connector reads.
type TraktUserSettings struct {
	User struct {
		Username string `json:"username"`
		Private  bool   `json:"private"`
		Name     string `json:"name"`
		VIP      bool   `json:"vip"`
		IDs      struct {
			Slug string `json:"slug"`
		} `json:"ids"`
	} `json:"user"`
	Account struct {
		Timezone string `json:"timezone"`
	} `json:"account"`
}

// TraktClient fetches Trakt resources through the backend proxy.
type TraktClient struct {
	api *APIService
}

// NewTraktClient creates a [TraktClient] over api.
func NewTraktClient(api *APIService) *TraktClient {
	return &TraktClient{api: api}
}

// WatchlistShows returns the shows on the user's watchlist.
func (c *TraktClient) WatchlistShows(ctx context.Context, token string) ([]TraktWatchlistItem, error) {
	return Fetch[[]TraktWatchlistItem](ctx, c.api, models.ServiceTrakt, "/users/me/watchlist/shows", token)
}

// WatchlistMovies returns the movies on the user's watchlist.
func (c *TraktClient) WatchlistMovies(ctx context.Context, token string) ([]TraktWatchlistItem, error) {
	return Fetch[[]TraktWatchlistItem](ctx, c.api, models.ServiceTrakt, "/users/me/watchlist/movies", token)
}

// Watchlist fetches shows and movies concurrently. If either request fails the whole call fails
// and no partial watchlist is returned.
func (c *TraktClient) Watchlist(ctx context.Context, token string) (*TraktWatchlist, error) {
	var shows, movies []TraktWatchlistItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shows, err = c.WatchlistShows(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		movies, err = c.WatchlistMovies(gctx, token)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &TraktWatchlist{Shows: shows, Movies: movies}, nil
}

// UserSettings returns the authenticated user's account settings.
func (c *TraktClient) UserSettings(ctx context.Context, token string) (*TraktUserSettings, error) {
	settings, err := Fetch[TraktUserSettings](ctx, c.api, models.ServiceTrakt, "/users/settings", token)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
