package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/auth"
	"github.com/shibest/mycelius/internal/formatter"
	"github.com/shibest/mycelius/internal/repositories"
	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
	"github.com/shibest/mycelius/internal/similarity"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, session and similarity service are opened on first use, so commands that only talk
// to the proxy never touch the disk.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	navigate   shared.Navigator

	scorer similarity.Scorer
	cache  similarity.Cache

	mu       sync.Mutex
	db       *sql.DB
	session  *auth.Session
	settings *repositories.SettingsRepository
	scores   *similarity.Service
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// Navigator opens authorize URLs. Defaults to the system browser.
	Navigator shared.Navigator
	// DB, Scorer and Cache replace the configured backends.
	DB     *sql.DB
	Scorer similarity.Scorer
	Cache  similarity.Cache
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(opts.Config.Server.ProxyURL, opts.HTTPClient)
	}
	if opts.Navigator == nil {
		opts.Navigator = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		navigate:   opts.Navigator,
		db:         opts.DB,
		scorer:     opts.Scorer,
		cache:      opts.Cache,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, healthCommand, apiCommand,
		spotifyCommand, traktCommand, steamCommand, profileCommand, similarityCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// open lazily opens the database and builds the session and repositories.
func (r *Runner) open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return nil
	}

	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return err
		}
		r.db = db
	}

	store := repositories.NewTokenRepository(r.db)
	r.settings = repositories.NewSettingsRepository(r.db)
	r.session = auth.NewSession(r.config, store, r.api,
		auth.WithNavigator(r.navigate),
		auth.WithLogger(shared.WithLogger(r.logger, "component", "auth")),
	)
	r.session.OnClose(r.db.Close)
	return nil
}

// Session returns the token session, opening the database if needed.
func (r *Runner) Session() (*auth.Session, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	return r.session, nil
}

// Settings returns the settings repository, opening the database if needed.
func (r *Runner) Settings() (*repositories.SettingsRepository, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	return r.settings, nil
}

// Similarity returns the scoring service, connecting the configured cache and scorer on first use.
func (r *Runner) Similarity(ctx context.Context) (*similarity.Service, error) {
	if err := r.open(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scores != nil {
		return r.scores, nil
	}

	if r.cache == nil {
		cache, err := r.openCache(ctx)
		if err != nil {
			return nil, err
		}
		r.cache = cache
		r.session.OnClose(cache.Close)
	}

	if r.scorer == nil {
		scorer, err := similarity.NewGeminiScorer(ctx, r.config.Gemini.APIKey,
			similarity.WithModel(r.config.Gemini.Model),
			similarity.WithScorerLogger(shared.WithLogger(r.logger, "component", "scorer")),
		)
		if err != nil {
			return nil, err
		}
		r.scorer = scorer
	}

	r.scores = similarity.NewService(r.cache, r.scorer,
		similarity.WithTTL(r.config.Cache.GetTTL()),
		similarity.WithLogger(shared.WithLogger(r.logger, "component", "similarity")),
	)
	return r.scores, nil
}

func (r *Runner) openCache(ctx context.Context) (similarity.Cache, error) {
	if url := r.config.Cache.RedisURL; url != "" {
		r.logger.Debug("using redis similarity cache")
		return similarity.NewRedisCache(ctx, url, r.config.Cache.GetTTL())
	}
	r.logger.Debug("using bolt similarity cache", "path", r.config.Cache.Path)
	return similarity.OpenBoltCache(r.config.Cache.Path)
}

// Close releases the database and cache.
func (r *Runner) Close() error {
	r.mu.Lock()
	session, db := r.session, r.db
	r.mu.Unlock()

	if session != nil {
		return session.Close()
	}
	if db != nil {
		return db.Close()
	}
	return nil
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

// render writes table in the command's --format, to --output when given.
func (r *Runner) render(cmd *cli.Command, table *formatter.Table) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(format, table, path)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %d items to %s\n", len(table.Rows), written)
	}

	data, err := formatter.Render(format, table)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
