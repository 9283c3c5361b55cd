package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/auth"
	"github.com/shibest/mycelius/internal/formatter"
	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/services"
)

func (r *Runner) spotifyCall(ctx context.Context, fn func(context.Context, *services.SpotifyClient, string) error) error {
	ctrl, err := r.controller(models.ServiceSpotify)
	if err != nil {
		return err
	}
	client := services.NewSpotifyClient(r.api)
	_, err = auth.WithRefresh(ctx, ctrl, func(ctx context.Context, token string) (struct{}, error) {
		return struct{}{}, fn(ctx, client, token)
	})
	return err
}

// SpotifyTopArtists lists the user's top artists.
func (r *Runner) SpotifyTopArtists(ctx context.Context, cmd *cli.Command) error {
	var page *services.SpotifyPage[services.SpotifyArtist]
	err := r.spotifyCall(ctx, func(ctx context.Context, c *services.SpotifyClient, token string) (err error) {
		page, err = c.TopArtists(ctx, token, cmd.Int("limit"), cmd.String("time-range"))
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info("fetched top artists", "count", len(page.Items))
	return r.render(cmd, formatter.ArtistsTable(page.Items))
}

// SpotifyTopTracks lists the user's top tracks.
func (r *Runner) SpotifyTopTracks(ctx context.Context, cmd *cli.Command) error {
	var page *services.SpotifyPage[services.SpotifyTrack]
	err := r.spotifyCall(ctx, func(ctx context.Context, c *services.SpotifyClient, token string) (err error) {
		page, err = c.TopTracks(ctx, token, cmd.Int("limit"), cmd.String("time-range"))
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info("fetched top tracks", "count", len(page.Items))
	return r.render(cmd, formatter.TracksTable(page.Items))
}

// SpotifyRecent lists recently played tracks.
func (r *Runner) SpotifyRecent(ctx context.Context, cmd *cli.Command) error {
	var recent *services.SpotifyRecentlyPlayed
	err := r.spotifyCall(ctx, func(ctx context.Context, c *services.SpotifyClient, token string) (err error) {
		recent, err = c.RecentlyPlayed(ctx, token, cmd.Int("limit"))
		return err
	})
	if err != nil {
		return err
	}

	tracks := make([]services.SpotifyTrack, 0, len(recent.Items))
	for _, item := range recent.Items {
		tracks = append(tracks, item.Track)
	}
	table := formatter.TracksTable(tracks)
	table.Title = "Recently Played"
	return r.render(cmd, table)
}

// SpotifyMe shows the user's Spotify profile.
func (r *Runner) SpotifyMe(ctx context.Context, cmd *cli.Command) error {
	var user *services.SpotifyUser
	err := r.spotifyCall(ctx, func(ctx context.Context, c *services.SpotifyClient, token string) (err error) {
		user, err = c.UserProfile(ctx, token)
		return err
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}

	r.writePlainHeader("Spotify")
	r.writePlain("Name: %s\n", user.DisplayName)
	r.writePlain("ID: %s\n", user.ID)
	if user.Country != "" {
		r.writePlain("Country: %s\n", user.Country)
	}
	r.writePlain("Plan: %s\n", user.Product)
	return r.writePlain("Followers: %d\n", user.Followers.Total)
}
