package mcp

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ngs-reimbursement-mcp-server/internal/cache"
	"github.com/ngs-reimbursement-mcp-server/internal/catalog"
	litecfg "github.com/ngs-reimbursement-mcp-server/internal/config"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/history"
	"github.com/ngs-reimbursement-mcp-server/internal/logging"
	"github.com/ngs-reimbursement-mcp-server/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses in-memory caching and SQLite for persistence.
type LiteServer struct {
	*Server
	config       *litecfg.LiteConfig
	historyStore history.Store
	cache        *cache.MemoryCache
	logger       *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithHistoryStore sets a custom history store.
func WithHistoryStore(store history.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.historyStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{config: cfg}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// stdout carries the protocol, so logs go to stderr
	if server.logger == nil {
		logger, err := logging.New(domain.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stderr"})
		if err != nil {
			return nil, err
		}
		server.logger = logger
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	set, err := catalog.Load(cfg.CatalogFile, cfg.DefaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	server.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)

	if server.historyStore == nil {
		store, err := history.NewSQLiteStore(cfg.HistoryDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create history store: %w", err)
		}
		server.historyStore = store
	}

	analyzer := service.NewAnalysisService(set, server.logger, service.AnalysisOptions{
		Cache:         server.cache,
		History:       server.historyStore,
		DefaultTrials: cfg.DefaultTrials,
		MaxTrials:     cfg.MaxTrials,
		Workers:       cfg.Workers,
	})

	server.Server = NewServer(analyzer, server.logger, Options{
		Name:      DefaultServerName + "-lite",
		Version:   DefaultServerVersion,
		History:   server.historyStore,
		ExportDir: cfg.ExportDir(),
	})

	server.logger.WithFields(logrus.Fields{
		"data_dir":        cfg.DataDir,
		"default_catalog": set.DefaultCatalog(),
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.historyStore != nil {
		if err := s.historyStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close history store")
		}
	}
	return s.cache.Close()
}

// HistoryStore returns the history store for external access.
func (s *LiteServer) HistoryStore() history.Store {
	return s.historyStore
}

// Cache returns the memory cache for external access.
func (s *LiteServer) Cache() *cache.MemoryCache {
	return s.cache
}
