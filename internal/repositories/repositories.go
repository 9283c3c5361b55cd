// package repositories provides SQLite persistence for tokens and local settings.
package repositories

import (
	"github.com/shibest/mycelius/internal/models"
)

// TokenStore is the durable per-service token storage used by the OAuth flow controllers.
type TokenStore interface {
	Get(service models.Service) (*models.TokenRecord, error)
	Set(service models.Service, record *models.TokenRecord) error
	Clear(service models.Service) error
}

var _ TokenStore = (*TokenRepository)(nil)
