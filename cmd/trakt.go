package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/auth"
	"github.com/shibest/mycelius/internal/formatter"
	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/services"
)

func (r *Runner) traktWatchlist(ctx context.Context) (*services.TraktWatchlist, error) {
	ctrl, err := r.controller(models.ServiceTrakt)
	if err != nil {
		return nil, err
	}
	client := services.NewTraktClient(r.api)
	return auth.WithRefresh(ctx, ctrl, client.Watchlist)
}

// TraktWatchlist lists watchlisted shows and movies.
func (r *Runner) TraktWatchlist(ctx context.Context, cmd *cli.Command) error {
	watchlist, err := r.traktWatchlist(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("fetched watchlist", "shows", len(watchlist.Shows), "movies", len(watchlist.Movies))
	return r.render(cmd, formatter.WatchlistTable(watchlist))
}

// TraktMe shows the user's Trakt settings.
func (r *Runner) TraktMe(ctx context.Context, cmd *cli.Command) error {
	ctrl, err := r.controller(models.ServiceTrakt)
	if err != nil {
		return err
	}
	settings, err := auth.WithRefresh(ctx, ctrl, services.NewTraktClient(r.api).UserSettings)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(settings, true)
	}

	r.writePlainHeader("Trakt")
	r.writePlain("Username: %s\n", settings.User.Username)
	if settings.User.Name != "" {
		r.writePlain("Name: %s\n", settings.User.Name)
	}
	return r.writePlain("Private: %t\n", settings.User.Private)
}
