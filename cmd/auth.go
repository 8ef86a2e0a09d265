package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotsearch/internal/server"
	"github.com/desertthunder/spotsearch/internal/session"
	"github.com/desertthunder/spotsearch/internal/shared"
	"github.com/desertthunder/spotsearch/internal/web"
	"github.com/urfave/cli/v3"
)

const loginPollInterval = 200 * time.Millisecond

// Login serves the web app, opens it in the browser and waits until the popup flow yields an authenticated
// session or the login timeout passes.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if env.manager.IsAuthenticated(ctx) && !cmd.Bool("force") {
		r.writePlain("✓ Already signed in as %s\n", env.manager.Snapshot().User.Name())
		return nil
	}

	app, err := web.New(env.manager, env.spotify, r.logger)
	if err != nil {
		return fmt.Errorf("failed to load web app: %w", err)
	}

	srv, err := server.Listen(r.config.Server.Addr(), app.Router(), r.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Shutdown(); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.logger.Info("serving login page", "url", srv.URL())

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser and click \"Log in with Spotify\":\n%s\n\n", srv.URL())
	} else {
		r.writePlain("→ Opening browser for Spotify sign in...\n")
		if err := r.openBrowser(srv.URL()); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", srv.URL())
		}
	}

	timeout := r.config.Auth.Timeout()
	r.writePlain("→ Waiting for sign in (%s timeout)...\n", timeout)

	if err := r.awaitSession(ctx, env.manager, srv, timeout); err != nil {
		return err
	}

	snap := env.manager.Snapshot()
	r.writePlainln("✓ Signed in as %s", snap.User.Name())
	r.writePlain("✓ Session valid until %s\n", snap.Expiry().Format(time.RFC1123))
	return nil
}

// awaitSession polls the manager until it reports an authenticated session.
func (r *Runner) awaitSession(ctx context.Context, m *session.Manager, srv *server.Server, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.Phase() == session.Authenticated {
				return nil
			}
		case err := <-srv.Errors():
			return fmt.Errorf("server error: %w", err)
		case <-deadline.C:
			return fmt.Errorf("%w: waited %s", shared.ErrLoginTimeout, timeout)
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", shared.ErrLoginCancelled, ctx.Err())
		}
	}
}

// Logout clears the persisted session.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	env.manager.Logout(ctx)
	r.writePlain("✓ Signed out\n")
	return nil
}

// StatusReport is the output of the status command. It never carries the token.
type StatusReport struct {
	Phase         string `json:"phase"`
	Authenticated bool   `json:"authenticated"`
	Expired       bool   `json:"expired"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Email         string `json:"email,omitempty"`
	Country       string `json:"country,omitempty"`
	Product       string `json:"product,omitempty"`
}

// Status reports the restored session.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	snap := env.manager.Snapshot()
	report := StatusReport{
		Phase:         env.manager.Phase().String(),
		Authenticated: env.manager.IsAuthenticated(ctx),
		Expired:       session.HasExpired(snap, time.Now()),
	}
	if snap.ExpiresAt != 0 {
		report.ExpiresAt = snap.Expiry().Format(time.RFC3339)
	}
	if u := snap.User; u != nil {
		report.UserID = u.ID
		report.DisplayName = u.DisplayName
		report.Email = u.Email
		report.Country = u.Country
		report.Product = u.Product
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader("Spotify session")
	r.writePlain("Phase:   %s\n", report.Phase)
	if !report.Authenticated {
		r.writePlain("Not signed in. Run 'spotsearch login'.\n")
		return nil
	}
	r.writePlain("User:    %s (%s)\n", snap.User.Name(), report.UserID)
	if report.Email != "" {
		r.writePlain("Email:   %s\n", report.Email)
	}
	if report.Product != "" {
		r.writePlain("Plan:    %s\n", report.Product)
	}
	r.writePlain("Expires: %s\n", report.ExpiresAt)
	return nil
}
