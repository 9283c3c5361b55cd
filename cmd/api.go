package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/auth"
	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/server"
	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
)

// Health checks the proxy by calling its /health endpoint.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking proxy health", "url", r.api.BaseURL())

	resp, err := r.api.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	var health server.HealthResponse
	if err := json.Unmarshal(resp.Body, &health); err != nil {
		return fmt.Errorf("%w: unexpected health response: %v", shared.ErrServiceUnavailable, err)
	}

	r.writePlain("✓ Proxy is healthy\n")
	r.writePlain("Status: %s\n", health.Status)
	if ts, err := time.Parse(time.RFC3339Nano, health.Timestamp); err == nil {
		r.writePlain("Server time: %s\n", ts.Local().Format(time.RFC1123))
	}
	return nil
}

// APIGet makes a direct GET request to /{service}/{path} through the proxy.
//
// OAuth services attach the stored access token and refresh it once on 401.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	service, err := models.ParseService(cmd.StringArg("service"))
	if err != nil {
		return err
	}
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	r.logger.Info("GET request", "service", service, "path", path)

	fetch := func(ctx context.Context, token string) (any, error) {
		return services.Fetch[any](ctx, r.api, service, path, token)
	}

	var data any
	if service.UsesOAuth() {
		ctrl, err := r.controller(service)
		if err != nil {
			return err
		}
		data, err = auth.WithRefresh(ctx, ctrl, fetch)
		if err != nil {
			return err
		}
	} else if data, err = fetch(ctx, ""); err != nil {
		return err
	}

	return r.writeJSON(data, cmd.Bool("pretty"))
}
