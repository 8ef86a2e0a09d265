package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsearch/internal/repositories"
	"github.com/desertthunder/spotsearch/internal/services"
	"github.com/desertthunder/spotsearch/internal/session"
	"github.com/desertthunder/spotsearch/internal/shared"
	"github.com/desertthunder/spotsearch/internal/store"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	store       session.Store
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is loaded from the --config flag before any command runs. A non-nil Store replaces the
// configured backend.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Store       session.Store
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		store:       opts.Store,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigPath,
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, loginCommand, logoutCommand, statusCommand, searchCommand, apiCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, falling back to defaults when the file is missing,
// then applies .env and environment overrides.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	if r.configPath == "" {
		r.configPath = defaultConfigPath
	}

	if r.config == nil {
		config, err := shared.LoadConfig(r.configPath)
		switch {
		case err == nil:
			r.config = config
		case errors.Is(err, os.ErrNotExist):
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
			r.config = shared.DefaultConfig()
		default:
			return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
	}

	if err := shared.ApplyEnv(r.config); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// environment is the session manager and gateway a command works with.
type environment struct {
	manager *session.Manager
	spotify *services.SpotifyService
	closers []func() error
}

func (e *environment) Close() {
	e.manager.Close()
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// openStore opens the configured persistent token store.
func (r *Runner) openStore(ctx context.Context) (session.Store, []func() error, error) {
	if r.store != nil {
		return r.store, nil, nil
	}

	kind, err := store.ParseKind(r.config.Store.Backend)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	var backend store.Backend
	var closers []func() error
	switch kind {
	case store.KindRedis:
		rdb, err := store.DialRedis(ctx, r.config.Store.RedisAddr, r.config.Store.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		backend = rdb
		closers = append(closers, rdb.Close)
	case store.KindMemory:
		r.logger.Warn("using in-memory token store, sessions will not survive this process")
		backend = store.NewMemory()
	default:
		repo, db, err := repositories.Open(ctx, r.config.Database)
		if err != nil {
			return nil, nil, err
		}
		backend = repo
		closers = append(closers, db.Close)
	}

	if key := r.config.Store.EncryptionKey; key != "" {
		encrypted, err := store.NewEncryptedHex(backend, key)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		return encrypted, closers, nil
	}
	return backend, closers, nil
}

// open wires the token store, session manager and gateway together and restores any persisted session.
func (r *Runner) open(ctx context.Context) (*environment, error) {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}

	tokens, closers, err := r.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	manager, err := session.NewManager(session.Options{
		Store:   tokens,
		Spotify: r.config.Credentials.Spotify,
		Auth:    r.config.Auth,
		Logger:  r.logger,
		Navigate: func(route string) {
			r.logger.Debug("navigate", "route", route)
		},
	})
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}

	spotify := services.NewSpotifyService(manager, r.config.API, r.httpClient, r.logger)
	manager.SetProfileLoader(spotify.FetchCurrentUser)
	manager.RestoreSession(ctx)

	return &environment{manager: manager, spotify: spotify, closers: closers}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
