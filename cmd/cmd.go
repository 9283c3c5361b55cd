// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/services"
)

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, csv, markdown or json",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to this file instead of stdout",
		},
	}
}

func limitFlag(value int) cli.Flag {
	return &cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of items", Value: value}
}

func timeRangeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "time-range",
		Usage: "short_term, medium_term or long_term",
		Value: services.TimeRangeMedium,
	}
}

// serveCommand runs the backend proxy
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the backend proxy that holds provider secrets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// healthCommand checks the proxy
func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check that the backend proxy is reachable (calls /health)",
		Action: r.Health,
	}
}

// apiCommand handles direct (proxy) API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls through the backend proxy",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET /{service}/{path} with the stored access token, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "service"},
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// authCommands returns the login/logout/refresh/status commands for an OAuth provider
func authCommands(r *Runner, service models.Service) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "login",
			Usage:  "Authorize in the browser and store the tokens",
			Action: r.loginAction(service),
		},
		{
			Name:   "logout",
			Usage:  "Forget the stored tokens",
			Action: r.logoutAction(service),
		},
		{
			Name:   "refresh",
			Usage:  "Trade the refresh token for a new access token",
			Action: r.refreshAction(service),
		},
		{
			Name:   "status",
			Usage:  "Show whether tokens are stored",
			Action: r.statusAction(service),
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account and listening data",
		Commands: append(authCommands(r, models.ServiceSpotify),
			&cli.Command{
				Name:   "top-artists",
				Usage:  "List your top artists",
				Flags:  append([]cli.Flag{limitFlag(20), timeRangeFlag()}, formatFlags()...),
				Action: r.SpotifyTopArtists,
			},
			&cli.Command{
				Name:   "top-tracks",
				Usage:  "List your top tracks",
				Flags:  append([]cli.Flag{limitFlag(20), timeRangeFlag()}, formatFlags()...),
				Action: r.SpotifyTopTracks,
			},
			&cli.Command{
				Name:   "recent",
				Usage:  "List recently played tracks",
				Flags:  append([]cli.Flag{limitFlag(20)}, formatFlags()...),
				Action: r.SpotifyRecent,
			},
			&cli.Command{
				Name:  "me",
				Usage: "Show your Spotify profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.SpotifyMe,
			},
		),
	}
}

// traktCommand handles Trakt operations
func traktCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "trakt",
		Usage: "Trakt account and watchlist",
		Commands: append(authCommands(r, models.ServiceTrakt),
			&cli.Command{
				Name:   "watchlist",
				Usage:  "List watchlisted shows and movies",
				Flags:  formatFlags(),
				Action: r.TraktWatchlist,
			},
			&cli.Command{
				Name:  "me",
				Usage: "Show your Trakt user settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.TraktMe,
			},
		),
	}
}

// steamCommand handles Steam operations
func steamCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "steam",
		Usage: "Steam library",
		Commands: []*cli.Command{
			{
				Name:  "link",
				Usage: "Link a SteamID64 and verify it through the proxy",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "steamid"},
				},
				Action: r.SteamLink,
			},
			{
				Name:   "games",
				Usage:  "List owned games, most played first",
				Flags:  append([]cli.Flag{limitFlag(25)}, formatFlags()...),
				Action: r.SteamGames,
			},
		},
	}
}

// profileCommand manages the local interest profile
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage the interest profile used for similarity scoring",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Save the profile; clears cached scores when it changes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "hobbies", Usage: "Free-form hobbies"},
					&cli.StringSliceFlag{Name: "genre", Usage: "Music genre (repeatable)"},
					&cli.StringSliceFlag{Name: "game", Usage: "Favorite game (repeatable)"},
					&cli.StringSliceFlag{Name: "show", Usage: "Favorite show (repeatable)"},
					&cli.BoolFlag{
						Name:  "from-services",
						Usage: "Fill empty fields from connected Spotify, Steam and Trakt accounts",
					},
				},
				Action: r.ProfileSet,
			},
			{
				Name:  "show",
				Usage: "Print the stored profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.ProfileShow,
			},
		},
	}
}

// similarityCommand scores candidates against the profile
func similarityCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "similarity",
		Aliases: []string{"sim"},
		Usage:   "Score other users against your profile",
		Commands: []*cli.Command{
			{
				Name:  "score",
				Usage: "Rank candidates from a JSON file ([{username, personality, interests}])",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "candidates"},
				},
				Flags:  formatFlags(),
				Action: r.SimilarityScore,
			},
			{
				Name:   "clear",
				Usage:  "Delete every cached similarity batch",
				Action: r.SimilarityClear,
			},
		},
	}
}
