package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shibest/mycelius/internal/models"
)

// Fetch issues GET {proxy}/{service}{path} with the bearer token and decodes the JSON body into T.
//
// A 401 yields [*TokenExpiredError]; every other non-2xx yields [*RequestFailedError] carrying the
// status and body. An empty token sends no Authorization header (Steam).
func Fetch[T any](ctx context.Context, client *APIService, service models.Service, path, token string) (T, error) {
	var result T

	var opts []RequestOption
	if token != "" {
		opts = append(opts, WithBearer(token))
	}

	resp, err := client.Get(ctx, "/"+string(service)+path, opts...)
	if err != nil {
		return result, &RequestFailedError{Service: service, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return result, &TokenExpiredError{Service: service}
	}
	if !resp.OK() {
		return result, &RequestFailedError{Service: service, Status: resp.StatusCode, Body: string(resp.Body)}
	}

	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return result, &RequestFailedError{
			Service: service,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return result, nil
}
