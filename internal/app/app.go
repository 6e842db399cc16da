// Package app assembles the engine and its storage from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ngs-reimbursement-mcp-server/internal/cache"
	"github.com/ngs-reimbursement-mcp-server/internal/catalog"
	"github.com/ngs-reimbursement-mcp-server/internal/database"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/health"
	"github.com/ngs-reimbursement-mcp-server/internal/history"
	"github.com/ngs-reimbursement-mcp-server/internal/service"
)

// Version is reported by the health endpoint and the MCP handshake.
const Version = "v0.1.0"

// App holds the wired collaborators shared by the HTTP server, the MCP server
// and the CLI.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Catalogs *catalog.Set
	Cache    domain.ResultCache
	History  history.Store
	DB       *database.DB
	Analyzer *service.AnalysisService
	Health   *health.Checker
}

// New builds an App. On error everything opened so far is closed.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Catalogs, err = catalog.Load(cfg.Engine.CatalogFile, cfg.Engine.DefaultCatalog); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if a.Cache, err = cache.New(cfg.Cache, logger); err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	if a.History, a.DB, err = OpenHistory(ctx, cfg.Database, logger); err != nil {
		return nil, err
	}

	opts := service.AnalysisOptions{
		History:       a.History,
		DefaultTrials: cfg.Engine.DefaultTrials,
		MaxTrials:     cfg.Engine.MaxTrials,
		Workers:       cfg.Engine.Workers,
	}
	if a.Cache != nil {
		opts.Cache = a.Cache
	}
	a.Analyzer = service.NewAnalysisService(a.Catalogs, logger, opts)

	a.Health = health.NewChecker(Version, 0, logger)
	a.registerHealthChecks()

	logger.WithFields(logrus.Fields{
		"catalogs":        a.Catalogs.Names(),
		"default_catalog": a.Catalogs.DefaultCatalog(),
		"database":        cfg.Database.Driver,
		"cache":           a.Cache != nil,
	}).Info("Application initialized")
	return a, nil
}

// OpenHistory opens the configured history store. For PostgreSQL it also
// returns the connection pool and applies migrations when MigrateOnStart is set.
func OpenHistory(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (history.Store, *database.DB, error) {
	switch cfg.Driver {
	case domain.DriverSQLite:
		store, err := history.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite history: %w", err)
		}
		logger.WithField("path", store.Path()).Info("SQLite history opened")
		return store, nil, nil

	case domain.DriverPostgres:
		if cfg.MigrateOnStart {
			if err := Migrate(ctx, cfg.URL, logger, true); err != nil {
				return nil, nil, err
			}
		}
		db, err := database.NewConnection(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store, err := history.NewPostgresStore(db.SQL)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to open postgres history: %w", err)
		}
		return store, db, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// Migrate applies (up) or rolls back (down) the PostgreSQL schema.
func Migrate(ctx context.Context, url string, logger *logrus.Logger, up bool) error {
	runner, err := database.NewMigrationRunner(url, logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	defer runner.Close()

	if up {
		err = runner.Up(ctx)
	} else {
		err = runner.Down(ctx)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) registerHealthChecks() {
	if a.DB != nil {
		a.Health.Register(health.CheckFunc{CheckName: "database", Fn: a.DB.Health})
	}
	if a.History != nil {
		a.Health.Register(health.CheckFunc{CheckName: "history", Fn: func(ctx context.Context) error {
			_, err := a.History.Count(ctx)
			return err
		}})
	}
	if a.Cache != nil {
		a.Health.Register(cacheCheck{cache: a.Cache})
	}
}

type statser interface {
	Stats() cache.Stats
}

// cacheCheck pings caches that have a remote backend and reports hit and miss
// counters for all of them.
type cacheCheck struct {
	cache domain.ResultCache
}

func (c cacheCheck) Name() string { return "cache" }

func (c cacheCheck) Check(ctx context.Context) error {
	if p, ok := c.cache.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c cacheCheck) Details() any {
	if s, ok := c.cache.(statser); ok {
		return s.Stats()
	}
	return nil
}

// Close releases the cache, the history store and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return errors.Join(errs...)
}
