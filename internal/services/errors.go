package services

import (
	"errors"
	"fmt"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/shared"
)

// TokenExpiredError is returned when a provider answers 401. Callers refresh and retry once.
type TokenExpiredError struct {
	Service models.Service
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("%s: %s", e.Service, shared.ErrTokenExpired)
}

func (e *TokenExpiredError) Is(target error) bool {
	return target == shared.ErrTokenExpired
}

// RequestFailedError is returned for any other non-2xx response, or for a transport failure when Status is 0.
type RequestFailedError struct {
	Service models.Service
	Status  int
	Body    string
	Err     error
}

func (e *RequestFailedError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Service, shared.ErrAPIRequest, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: %s: status %d: %s", e.Service, shared.ErrAPIRequest, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s: %s: status %d", e.Service, shared.ErrAPIRequest, e.Status)
	}
}

func (e *RequestFailedError) Is(target error) bool {
	return target == shared.ErrAPIRequest
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// IsTokenExpired reports whether err signals an expired access token.
func IsTokenExpired(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired)
}
