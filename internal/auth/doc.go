// Package auth runs the OAuth authorization code flow for Spotify and Trakt against the backend proxy.
//
// A [Controller] moves through LoggedOut, Authorizing, Exchanging and LoggedIn, passing through
// Refreshing when the access token is renewed. Any failure lands back in LoggedOut.
// [Controller.HandleCallback] and [Controller.RefreshAccessToken] report failure as false rather
// than an error, so callers can keep offering a login.
//
// [Session] is created at startup, owns the token store and the controllers, and is closed at exit.
// [WithRefresh] wraps a data request with a single refresh-then-retry on an expired token.
package auth
