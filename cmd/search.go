package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/spotsearch/internal/formatter"
	"github.com/desertthunder/spotsearch/internal/shared"
	"github.com/desertthunder/spotsearch/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Search queries the catalog and writes the results in the requested format.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	if cmd.String("batch") != "" {
		return r.BatchSearch(ctx, cmd)
	}

	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	types := searchTypes(cmd)
	limit := int(cmd.Int("limit"))

	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if !env.manager.IsAuthenticated(ctx) {
		return fmt.Errorf("%w: run 'spotsearch login' first", shared.ErrNotAuthenticated)
	}

	r.logger.Info("searching", "query", query, "types", types, "limit", limit)

	results, err := env.spotify.Search(ctx, query, types, limit)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	output := cmd.String("output")
	if output == "" && !cmd.Bool("save") {
		return formatter.Write(r.output, results, query, format)
	}

	path, err := formatter.WriteExport(results, query, format, output)
	if err != nil {
		return err
	}
	r.writePlain("✓ Results saved to %s\n", path)
	return nil
}

// BatchSearch runs every query in the --batch file and writes one export per query plus a manifest.
func (r *Runner) BatchSearch(ctx context.Context, cmd *cli.Command) error {
	queries, err := readQueries(cmd.String("batch"))
	if err != nil {
		return err
	}

	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if !env.manager.IsAuthenticated(ctx) {
		return fmt.Errorf("%w: run 'spotsearch login' first", shared.ErrNotAuthenticated)
	}

	opts := tasks.BatchOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		Types:      searchTypes(cmd),
		Limit:      int(cmd.Int("limit")),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  r.config.API.RateLimit,
	}

	r.logger.Info("starting batch search", "queries", len(queries), "workers", opts.NumWorkers)

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Phase != tasks.DispatchQueries {
				r.writePlainln("%s", update.Message)
			}
		}
	}()

	engine := tasks.NewBatchEngine(env.spotify)
	result, err := engine.Search(ctx, progress, queries, opts)
	close(progress)
	<-done

	if result != nil {
		r.writePlain("\n%d of %d searches succeeded, manifest at %s\n",
			result.Succeeded, result.TotalQueries, filepath.Join(result.OutputDirectory, tasks.ManifestFile))
	}
	if err != nil {
		return fmt.Errorf("batch search failed: %w", err)
	}
	return nil
}

func searchTypes(cmd *cli.Command) []string {
	var types []string
	for _, t := range cmd.StringSlice("type") {
		for part := range strings.SplitSeq(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				types = append(types, part)
			}
		}
	}
	return types
}

// readQueries reads one query per line, skipping blanks and # comments.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: batch file %s has no queries", shared.ErrMissingArgument, path)
	}
	return queries, nil
}
