package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/server"
	"github.com/shibest/mycelius/internal/shared"
)

// Serve runs the backend proxy until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := *r.config
	if host := cmd.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Server.Port = port
	}

	for name, secret := range map[string]string{
		"spotify client secret": cfg.Credentials.Spotify.ClientSecret,
		"trakt client secret":   cfg.Credentials.Trakt.ClientSecret,
		"steam api key":         cfg.Credentials.Steam.APIKey,
	} {
		if secret == "" {
			r.logger.Warn("credential not configured, related routes will fail", "credential", name)
		}
	}

	logger := shared.WithLogger(r.logger, "component", "proxy")
	proxy := server.NewProxy(&cfg, server.WithProxyLogger(logger))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("→ Proxy listening on http://%s\n", cfg.Server.Addr())
	if err := server.Serve(ctx, cfg.Server.Addr(), proxy.Router(), logger); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}
