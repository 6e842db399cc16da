// Package cache stores encoded analysis results keyed by request hash. The
// in-memory cache serves single-process deployments; the Redis cache is shared
// between server replicas and degrades to misses when Redis is unavailable.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/sirupsen/logrus"
)

// Stats tracks cache performance
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
	Items  int   `json:"items"`
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot(items int) Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
		Items:  items,
	}
}

// Key creates a stable cache key for a namespace and a JSON-encodable value.
func Key(namespace string, v interface{}) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	hash := sha256.Sum256(append([]byte(namespace+"::"), payload...))
	return namespace + ":" + hex.EncodeToString(hash[:]), nil
}

// New selects the cache implementation from configuration: Redis when a URL is
// set, otherwise in-memory. It returns nil when caching is disabled.
func New(config domain.CacheConfig, logger *logrus.Logger) (domain.ResultCache, error) {
	if !config.Enabled {
		return nil, nil
	}
	if config.RedisURL != "" {
		rc, err := NewRedisCache(config, logger)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	return NewMemoryCache(config.MaxItems, config.DefaultTTL), nil
}
