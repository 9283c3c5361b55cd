package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shibest/mycelius/internal/models"
)

// TokenRepository persists one [models.TokenRecord] per service in the tokens table.
type TokenRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db, now: time.Now}
}

// Get returns the record for service, or nil without error when none is stored.
func (r *TokenRepository) Get(service models.Service) (*models.TokenRecord, error) {
	query := `SELECT access_token, refresh_token, obtained_at FROM tokens WHERE service = ?`

	var (
		record  = models.TokenRecord{Service: service}
		refresh sql.NullString
	)
	err := r.db.QueryRow(query, string(service)).Scan(&record.AccessToken, &refresh, &record.ObtainedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	record.RefreshToken = refresh.String
	return &record, nil
}

// Set stores record for service in a single upsert, replacing any previous record.
func (r *TokenRepository) Set(service models.Service, record *models.TokenRecord) error {
	record.Service = service
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if record.ObtainedAt.IsZero() {
		record.ObtainedAt = r.now()
	}

	query := `
		INSERT INTO tokens (service, access_token, refresh_token, obtained_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			obtained_at = excluded.obtained_at,
			updated_at = excluded.updated_at
	`

	refresh := sql.NullString{String: record.RefreshToken, Valid: record.RefreshToken != ""}
	if _, err := r.db.Exec(query, string(service), record.AccessToken, refresh, record.ObtainedAt, r.now()); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Clear removes the record for service. Clearing an absent record is not an error.
func (r *TokenRepository) Clear(service models.Service) error {
	if _, err := r.db.Exec(`DELETE FROM tokens WHERE service = ?`, string(service)); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
