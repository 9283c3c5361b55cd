// Steam Web API requests made through the backend proxy, which injects the API key
package services

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/shared"
)

// SteamGame is one entry of GetOwnedGames.
type SteamGame struct {
	AppID           int    `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"` // minutes
	Playtime2Weeks  int    `json:"playtime_2weeks,omitempty"`
	ImgIconURL      string `json:"img_icon_url"`
}

// SteamOwnedGames is the response body of IPlayerService/GetOwnedGames.
type SteamOwnedGames struct {
	GameCount int         `json:"game_count"`
	Games     []SteamGame `json:"games"`
}

// SteamPlayer is one entry of GetPlayerSummaries.
type SteamPlayer struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	ProfileURL  string `json:"profileurl"`
	Avatar      string `json:"avatarfull"`
	CountryCode string `json:"loccountrycode,omitempty"`
}

type steamEnvelope[T any] struct {
	Response T `json:"response"`
}

// SteamClient fetches Steam resources through the backend proxy. No user token is involved.
type SteamClient struct {
	api *APIService
}

// NewSteamClient creates a [SteamClient] over api.
func NewSteamClient(api *APIService) *SteamClient {
	return &SteamClient{api: api}
}

// OwnedGames lists the games owned by steamID, including free games played.
func (c *SteamClient) OwnedGames(ctx context.Context, steamID string) (*SteamOwnedGames, error) {
	if steamID == "" {
		return nil, fmt.Errorf("%w: steam id", shared.ErrMissingArgument)
	}
	q := url.Values{
		"steamid":                   {steamID},
		"include_appinfo":           {"true"},
		"include_played_free_games": {"true"},
		"format":                    {"json"},
	}
	env, err := Fetch[steamEnvelope[SteamOwnedGames]](ctx, c.api, models.ServiceSteam, "/IPlayerService/GetOwnedGames/v1/?"+q.Encode(), "")
	if err != nil {
		return nil, err
	}
	return &env.Response, nil
}

// PlayerSummaries returns the public profile of steamID.
func (c *SteamClient) PlayerSummaries(ctx context.Context, steamID string) ([]SteamPlayer, error) {
	if steamID == "" {
		return nil, fmt.Errorf("%w: steam id", shared.ErrMissingArgument)
	}
	q := url.Values{"steamids": {steamID}, "format": {"json"}}
	env, err := Fetch[steamEnvelope[struct {
		Players []SteamPlayer `json:"players"`
	}]](ctx, c.api, models.ServiceSteam, "/ISteamUser/GetPlayerSummaries/v2/?"+q.Encode(), "")
	if err != nil {
		return nil, err
	}
	return env.Response.Players, nil
}

// MostPlayed returns the names of the n games with the most playtime.
func MostPlayed(games []SteamGame, n int) []string {
	sorted := slices.Clone(games)
	slices.SortStableFunc(sorted, func(a, b SteamGame) int {
		return b.PlaytimeForever - a.PlaytimeForever
	})

	names := make([]string, 0, min(n, len(sorted)))
	for _, g := range sorted[:min(n, len(sorted))] {
		names = append(names, g.Name)
	}
	return names
}
