package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shibest/mycelius/internal/models"
)

const (
	SettingSteamID     = "steam_id"
	SettingUserProfile = "user_profile"
)

// SettingsRepository is a string key/value store over the settings table.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new [SettingsRepository] with the given database connection
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value for key and whether it was present.
func (r *SettingsRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key.
func (r *SettingsRepository) Set(key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *SettingsRepository) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// SteamID returns the linked Steam account, or "" when none is linked.
func (r *SettingsRepository) SteamID() (string, error) {
	id, _, err := r.Get(SettingSteamID)
	return id, err
}

// SetSteamID links a Steam account.
func (r *SettingsRepository) SetSteamID(id string) error {
	return r.Set(SettingSteamID, id)
}

// Profile returns the stored interest profile, or nil when none has been saved.
func (r *SettingsRepository) Profile() (*models.Profile, error) {
	raw, ok, err := r.Get(SettingUserProfile)
	if err != nil || !ok {
		return nil, err
	}

	var p models.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}

// SetProfile stores p as JSON and reports whether the canonical content changed.
func (r *SettingsRepository) SetProfile(p models.Profile) (bool, error) {
	prev, err := r.Profile()
	if err != nil {
		return false, err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := r.Set(SettingUserProfile, string(data)); err != nil {
		return false, err
	}

	if prev == nil {
		return true, nil
	}
	before, _ := json.Marshal(prev.Canonical())
	after, _ := json.Marshal(p.Canonical())
	return string(before) != string(after), nil
}
