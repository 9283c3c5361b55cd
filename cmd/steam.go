package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/formatter"
	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
)

// SteamLink verifies a SteamID64 through the proxy and stores it.
func (r *Runner) SteamLink(ctx context.Context, cmd *cli.Command) error {
	steamID := strings.TrimSpace(cmd.StringArg("steamid"))
	if steamID == "" {
		return fmt.Errorf("%w: steamid", shared.ErrMissingArgument)
	}

	players, err := services.NewSteamClient(r.api).PlayerSummaries(ctx, steamID)
	if err != nil {
		return err
	}
	if len(players) == 0 {
		return fmt.Errorf("%w: no Steam profile for %s", shared.ErrInvalidArgument, steamID)
	}

	settings, err := r.Settings()
	if err != nil {
		return err
	}
	if err := settings.SetSteamID(steamID); err != nil {
		return err
	}

	r.logger.Info("linked steam account", "steam_id", steamID)
	return r.writePlain("✓ Linked Steam account %s (%s)\n", players[0].PersonaName, steamID)
}

func (r *Runner) linkedSteamID() (string, error) {
	settings, err := r.Settings()
	if err != nil {
		return "", err
	}
	id, err := settings.SteamID()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: no Steam account linked, run 'steam link <steamid>'", shared.ErrNotAuthenticated)
	}
	return id, nil
}

// SteamGames lists the linked account's games, most played first.
func (r *Runner) SteamGames(ctx context.Context, cmd *cli.Command) error {
	steamID, err := r.linkedSteamID()
	if err != nil {
		return err
	}

	owned, err := services.NewSteamClient(r.api).OwnedGames(ctx, steamID)
	if err != nil {
		return err
	}

	games := slices.Clone(owned.Games)
	slices.SortStableFunc(games, func(a, b services.SteamGame) int {
		return b.PlaytimeForever - a.PlaytimeForever
	})
	if limit := cmd.Int("limit"); limit > 0 && limit < len(games) {
		games = games[:limit]
	}

	r.logger.Info("fetched owned games", "total", owned.GameCount, "shown", len(games))
	return r.render(cmd, formatter.GamesTable(games))
}
