package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/user/tenant-provisioner/internal/adapter/metrics"
)

type keyCacheEntry struct {
	isValid   bool
	expiresAt time.Time
}

// APIKeyRepository implements the domain.APIKeyRepository interface using
// PostgreSQL as the source of truth and an in-memory, time-based cache. The
// orchestrator API is service-to-service, so key churn is low and a short
// cache TTL keeps validation off the hot path.
type APIKeyRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]keyCacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.Metrics
}

func NewAPIKeyRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.Metrics) *APIKeyRepository {
	return &APIKeyRepository{
		db:       db,
		logger:   logger,
		cache:    make(map[string]keyCacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// IsValid checks if an API key is valid. It first checks a local cache and
// falls back to the database if the key is not found or the cache entry has
// expired.
func (r *APIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	r.mu.RLock()
	entry, found := r.cache[key]
	r.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if r.metrics != nil {
			r.metrics.APIKeyCacheHits.Inc()
		}
		return entry.isValid, nil
	}

	if r.metrics != nil {
		r.metrics.APIKeyCacheMisses.Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have refreshed the entry while we waited.
	entry, found = r.cache[key]
	if found && time.Now().Before(entry.expiresAt) {
		return entry.isValid, nil
	}

	var isValid bool
	query := `SELECT EXISTS(SELECT 1 FROM api_keys WHERE key = $1 AND is_active = true AND (expires_at IS NULL OR expires_at > NOW()))`
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&isValid); err != nil {
		r.logger.Error("failed to validate API key in database", "error", err)
		// Don't cache errors, let the next request retry from the DB
		return false, err
	}

	r.cache[key] = keyCacheEntry{
		isValid:   isValid,
		expiresAt: time.Now().Add(r.cacheTTL),
	}

	return isValid, nil
}
