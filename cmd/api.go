package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotsearch/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct authenticated GET request to the Web API
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path is required", shared.ErrMissingArgument)
	}
	compact := cmd.Bool("json")

	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	r.logger.Info("GET request", "path", path)

	resp, err := env.spotify.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		if compact {
			return r.writeJSON(resp.JSONData, false)
		}
		return r.writePlain("%s\n", resp.Pretty())
	}

	return r.writePlain("%s\n", resp.Body)
}
