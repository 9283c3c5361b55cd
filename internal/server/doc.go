// Package server implements the backend proxy and the local OAuth callback listener.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// [BasicRouter] uses [http.ServeMux] method patterns, so wrong-method requests get 405.
//
// # Backend Proxy
//
// [Proxy] holds the Spotify and Trakt client secrets and the Steam API key:
//   - POST /{service}/auth/token and /auth/refresh add client credentials to the grant and relay the provider's reply
//   - /{service}/... forwards the caller's bearer token to the provider API root, adding Trakt's
//     trakt-api-version and trakt-api-key headers or Steam's key query parameter
//   - GET /health reports liveness
//
// Every body the proxy writes, authored or relayed, passes through a [Redactor] holding the configured
// secrets. Logs carry method, path, status and duration only.
//
// Upstream calls are rate limited per provider ([Limiters]) and bounded by the configured timeout.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves /callback/{service}. It validates the state parameter, accepts one callback,
// and hands the authorization code to the CLI through a channel.
package server
