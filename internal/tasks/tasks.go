package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/spotsearch/internal/formatter"
	"github.com/desertthunder/spotsearch/internal/services"
	"github.com/desertthunder/spotsearch/internal/shared"
	"golang.org/x/time/rate"
)

// ManifestFile is the name of the summary written into the output directory.
const ManifestFile = "manifest.json"

// BatchOpts contains configuration for batch searches.
type BatchOpts struct {
	Format     string   // Export format: text, csv, markdown, json
	OutputDir  string   // Base output directory (default: search_export_{epoch})
	Types      []string // Item types per query (default: the catalog's defaults)
	Limit      int      // Items per type (default: the catalog's default)
	NumWorkers int      // Concurrent workers (default: 5, at most 10)
	RateLimit  float64  // Queries dispatched per second (default: 5)
}

// QueryResult is the outcome of one query in a batch.
type QueryResult struct {
	Index int    `json:"index"`
	Query string `json:"query"`
	File  string `json:"file,omitempty"`
	Items int    `json:"items"`
	Error error  `json:"-"`
}

// MarshalJSON adds the error message.
func (r QueryResult) MarshalJSON() ([]byte, error) {
	type plain QueryResult
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}

// BatchResult summarizes a batch search.
type BatchResult struct {
	CreatedAt       time.Time     `json:"created_at"`
	Format          string        `json:"format"`
	TotalQueries    int           `json:"total_queries"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	OutputDirectory string        `json:"output_directory"`
	ManifestPath    string        `json:"-"`
	Results         []QueryResult `json:"results"`
}

// BatchEngine runs batches of searches against a catalog.
type BatchEngine struct {
	catalog services.Catalog
}

// NewBatchEngine creates a new BatchEngine.
func NewBatchEngine(catalog services.Catalog) *BatchEngine {
	return &BatchEngine{catalog: catalog}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *BatchEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

type queryJob struct {
	index int
	query string
}

// Search runs every query through a rate-limited worker pool and exports each result set.
//
// Blank queries are dropped. The returned error reports setup failures, a lost session or cancelled context,
// and a manifest that could not be written. Per-query failures are only recorded in the result.
func (e *BatchEngine) Search(ctx context.Context, prog chan<- ProgressUpdate, queries []string, opts BatchOpts) (*BatchResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	queries = slices.DeleteFunc(slices.Clone(queries), func(q string) bool { return strings.TrimSpace(q) == "" })
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no queries given", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("search_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	result := &BatchResult{
		CreatedAt:       time.Now().UTC(),
		Format:          format,
		TotalQueries:    len(queries),
		OutputDirectory: opts.OutputDir,
		Results:         make([]QueryResult, 0, len(queries)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan queryJob, len(queries))
	results := make(chan QueryResult, len(queries))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.searchWorker(ctx, cancel, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, query := range queries {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(queries); j++ {
					results <- QueryResult{Index: j, Query: queries[j], Error: fmt.Errorf("skipped: %w", context.Cause(ctx))}
				}
				return
			}
			e.sendProgress(prog, dispatchUpdate(i+1, len(queries), query))
			jobs <- queryJob{index: i, query: query}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error == nil {
			result.Succeeded++
			e.sendProgress(prog, queryCompletedUpdate(completed, len(queries), res))
		} else {
			result.Failed++
			e.sendProgress(prog, queryFailedUpdate(completed, len(queries), res))
		}
	}

	slices.SortFunc(result.Results, func(a, b QueryResult) int { return a.Index - b.Index })

	manifestPath := filepath.Join(opts.OutputDir, ManifestFile)
	e.sendProgress(prog, manifestUpdate(manifestPath))
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("batch completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if cause := context.Cause(ctx); cause != nil {
		return result, cause
	}
	return result, nil
}

// searchWorker runs queries from the jobs channel. A lost session cancels the batch.
func (e *BatchEngine) searchWorker(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	wg *sync.WaitGroup,
	jobs <-chan queryJob,
	results chan<- QueryResult,
	opts BatchOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- QueryResult{Index: job.index, Query: job.query, Error: fmt.Errorf("skipped: %w", context.Cause(ctx))}
			continue
		}

		res := e.searchOne(ctx, job, opts)
		if res.Error != nil && sessionLost(res.Error) {
			cancel(res.Error)
		}
		results <- res
	}
}

// searchOne runs a single query and writes its export file.
func (e *BatchEngine) searchOne(ctx context.Context, j queryJob, opts BatchOpts) QueryResult {
	res := QueryResult{Index: j.index, Query: j.query}

	found, err := e.catalog.Search(ctx, j.query, opts.Types, opts.Limit)
	if err != nil {
		res.Error = fmt.Errorf("search failed: %w", err)
		return res
	}

	for _, section := range formatter.Sections(found) {
		res.Items += len(section.Rows)
	}

	name := fmt.Sprintf("%03d_%s", j.index+1, formatter.Filename(j.query, opts.Format))
	path, err := formatter.WriteExport(found, j.query, opts.Format, filepath.Join(opts.OutputDir, name))
	if err != nil {
		res.Error = fmt.Errorf("export failed: %w", err)
		return res
	}
	res.File = path
	return res
}

func writeManifest(result *BatchResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func sessionLost(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired) || errors.Is(err, shared.ErrNotAuthenticated)
}
