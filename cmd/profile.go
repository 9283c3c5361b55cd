package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/auth"
	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/services"
)

// ProfileSet stores the local interest profile and clears cached scores when it changed.
func (r *Runner) ProfileSet(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.Settings()
	if err != nil {
		return err
	}

	p := models.Profile{}
	if existing, err := settings.Profile(); err != nil {
		return err
	} else if existing != nil {
		p = *existing
	}

	if cmd.IsSet("hobbies") {
		p.Hobbies = strings.TrimSpace(cmd.String("hobbies"))
	}
	if cmd.IsSet("genre") {
		p.MusicGenres = cmd.StringSlice("genre")
	}
	if cmd.IsSet("game") {
		p.FavoriteGames = cmd.StringSlice("game")
	}
	if cmd.IsSet("show") {
		p.FavoriteShows = cmd.StringSlice("show")
	}

	if cmd.Bool("from-services") {
		r.fillFromServices(ctx, &p)
	}

	svc, err := r.Similarity(ctx)
	if err != nil {
		return err
	}
	changed, err := svc.UpdateProfile(ctx, settings, p)
	if err != nil {
		return err
	}

	if !changed {
		return r.writePlain("Profile unchanged\n")
	}
	return r.writePlain("✓ Profile saved, cached similarity scores cleared\n")
}

// fillFromServices fills empty profile fields from connected accounts. Unconnected services are skipped.
func (r *Runner) fillFromServices(ctx context.Context, p *models.Profile) {
	if len(p.MusicGenres) == 0 {
		if genres, err := r.spotifyGenres(ctx); err != nil {
			r.logger.Warn("skipping spotify genres", "error", err)
		} else {
			p.MusicGenres = genres
		}
	}

	if len(p.FavoriteGames) == 0 {
		if steamID, err := r.linkedSteamID(); err != nil {
			r.logger.Warn("skipping steam games", "error", err)
		} else if owned, err := services.NewSteamClient(r.api).OwnedGames(ctx, steamID); err != nil {
			r.logger.Warn("skipping steam games", "error", err)
		} else {
			p.FavoriteGames = services.MostPlayed(owned.Games, 10)
		}
	}

	if len(p.FavoriteShows) == 0 {
		if watchlist, err := r.traktWatchlist(ctx); err != nil {
			r.logger.Warn("skipping trakt shows", "error", err)
		} else {
			shows := make([]string, 0, len(watchlist.Shows))
			for _, item := range watchlist.Shows {
				shows = append(shows, item.Title())
			}
			p.FavoriteShows = shows
		}
	}
}

func (r *Runner) spotifyGenres(ctx context.Context) ([]string, error) {
	ctrl, err := r.controller(models.ServiceSpotify)
	if err != nil {
		return nil, err
	}
	client := services.NewSpotifyClient(r.api)
	page, err := auth.WithRefresh(ctx, ctrl, func(ctx context.Context, token string) (*services.SpotifyPage[services.SpotifyArtist], error) {
		return client.TopArtists(ctx, token, 20, services.TimeRangeMedium)
	})
	if err != nil {
		return nil, err
	}
	return services.Genres(page.Items), nil
}

// ProfileShow prints the stored profile.
func (r *Runner) ProfileShow(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.Settings()
	if err != nil {
		return err
	}
	p, err := settings.Profile()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(p, true)
	}
	if p == nil {
		return r.writePlain("No profile saved. Run 'profile set' to create one.\n")
	}

	r.writePlainHeader("Profile")
	r.writePlain("Hobbies: %s\n", orDash(p.Hobbies))
	r.writePlain("Genres: %s\n", orDash(strings.Join(p.MusicGenres, ", ")))
	r.writePlain("Games: %s\n", orDash(strings.Join(p.FavoriteGames, ", ")))
	return r.writePlain("Shows: %s\n", orDash(strings.Join(p.FavoriteShows, ", ")))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
