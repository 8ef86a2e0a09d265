package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/spotsearch/internal/server"
	"github.com/desertthunder/spotsearch/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the web app until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	app, err := web.New(env.manager, env.spotify, r.logger)
	if err != nil {
		return fmt.Errorf("failed to load web app: %w", err)
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	srv, err := server.Listen(addr, app.Router(), r.logger)
	if err != nil {
		return err
	}

	r.writePlain("→ Serving on %s (ctrl+c to stop)\n", srv.URL())
	if cmd.Bool("open") {
		if err := r.openBrowser(srv.URL()); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
