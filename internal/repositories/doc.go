// Package repositories implements SQLite persistence for the connector's local state.
//
// Key Implementations:
//   - [TokenRepository] : one row per provider holding the access/refresh token pair ([TokenStore])
//   - [SettingsRepository] : key/value settings such as the linked steam_id and the user_profile JSON
//
// The schema lives in the embedded migrations of the shared package. Every write is a single
// statement, so a reader never observes a half-written token record.
package repositories
