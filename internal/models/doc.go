// Package models defines the domain entities shared by the token store, the OAuth flow controllers,
// the backend proxy and the similarity scorer.
//
// The package contains three categories of types:
//
// 1. Persistent entities
//   - [TokenRecord] : access/refresh token pair for one provider, one row per [Service]
//   - [Profile] : the local user's interest profile, stored as JSON under the user_profile setting
//
// 2. Provider descriptions
//   - [Service] : spotify, trakt (OAuth) and steam (API key only)
//   - [OAuthConfig] : client credentials and endpoints; the secret is only ever populated inside the proxy
//   - [TokenResponse] : tagged provider token payloads ([SpotifyTokenResponse], [TraktTokenResponse])
//
// 3. Similarity inputs and outputs
//   - [CandidateProfile] : another user to be scored against the local [Profile]
//   - [SimilarityCacheEntry] : a scored batch with the time it was computed
package models
