// Package services implements the client side of the backend proxy: a raw transport and typed data clients
// for Spotify, Trakt and Steam.
//
// # Transport
//
// [APIService] sends requests to the proxy root and returns an [APIResponse] without treating non-2xx
// statuses as errors. The OAuth flow controllers use it for token exchange and refresh.
//
// # Typed fetches
//
// [Fetch] wraps a GET of {proxy}/{service}{path} with a bearer token and decodes the JSON body:
//   - 401 : [*TokenExpiredError], matching [shared.ErrTokenExpired], so the caller can refresh and retry once
//   - any other non-2xx or transport failure : [*RequestFailedError], matching [shared.ErrAPIRequest]
//
// [SpotifyClient], [TraktClient] and [SteamClient] are fixed-path compositions of [Fetch].
// [TraktClient.Watchlist] fetches shows and movies concurrently and fails as a whole if either fails.
//
// # Providers
//
// [Providers] lists authorize, token and API root URLs per service. The proxy reads the same catalogue.
package services
