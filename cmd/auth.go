package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/auth"
	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/server"
	"github.com/shibest/mycelius/internal/shared"
)

const authorizeTimeout = 2 * time.Minute

func (r *Runner) controller(service models.Service) (*auth.Controller, error) {
	session, err := r.Session()
	if err != nil {
		return nil, err
	}
	return session.Controller(service)
}

func (r *Runner) loginAction(service models.Service) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctrl, err := r.controller(service)
		if err != nil {
			return err
		}
		if err := r.doOAuth(ctx, ctrl, authorizeTimeout); err != nil {
			return err
		}

		r.writePlainln("✓ %s authorization successful", service)
		return r.writePlain("✓ Tokens saved to %s\n", r.config.Database.Path)
	}
}

func (r *Runner) logoutAction(service models.Service) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctrl, err := r.controller(service)
		if err != nil {
			return err
		}
		if err := ctrl.Logout(); err != nil {
			return err
		}
		return r.writePlain("✓ Logged out of %s\n", service)
	}
}

func (r *Runner) refreshAction(service models.Service) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctrl, err := r.controller(service)
		if err != nil {
			return err
		}
		if !ctrl.RefreshAccessToken(ctx) {
			return fmt.Errorf("%w: %s refresh failed, run '%s login' again", shared.ErrRefreshFailed, service, service)
		}
		return r.writePlain("✓ %s access token refreshed\n", service)
	}
}

func (r *Runner) statusAction(service models.Service) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctrl, err := r.controller(service)
		if err != nil {
			return err
		}
		record, err := ctrl.Record()
		if err != nil {
			return err
		}

		r.writePlain("Service: %s\n", service)
		if record == nil {
			return r.writePlain("Authentication: ✗ Not authenticated\n")
		}
		r.writePlain("Authentication: ✓ Authenticated\n")
		r.writePlain("Obtained: %s\n", record.ObtainedAt.Local().Format(time.RFC1123))
		if record.HasRefreshToken() {
			return r.writePlain("Refresh token: ✓ stored\n")
		}
		return r.writePlain("Refresh token: ✗ none\n")
	}
}

// doOAuth runs the authorization code flow for ctrl.
//
// It binds a callback listener on the APP_URL host, starts the login (which opens the browser),
// waits for the redirect, then hands the code to the controller for the exchange through the proxy.
func (r *Runner) doOAuth(ctx context.Context, ctrl *auth.Controller, timeout time.Duration) error {
	addr, err := server.CallbackAddr(r.config.Server.AppURL)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for callback on %s: %w", addr, err)
	}

	authURL, navErr := ctrl.Login(ctx)
	if authURL == "" {
		ln.Close()
		return navErr
	}

	oauthHandler := server.NewOAuthHandler(ctrl.Service(), ctrl.ExpectedState())
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("waiting for OAuth callback", "service", ctrl.Service(), "addr", addr)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for %s authorization...\n", ctrl.Service())
	if navErr != nil {
		r.logger.Warnf("failed to open browser automatically %v", navErr)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}

	if !ctrl.HandleCallback(ctx, result.Code) {
		return fmt.Errorf("%w: code exchange for %s failed", shared.ErrAuthFailed, ctrl.Service())
	}
	return nil
}
