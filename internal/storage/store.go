package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/StockAnalyzer/config"
	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/models"
)

var (
	// ErrNotFound is returned by Get and Update for an unknown session id.
	ErrNotFound      = errors.New("job not found")
	ErrInvalidStatus = errors.New("invalid job status")
)

// Store keeps one JobRecord per session id. Every operation is atomic on its
// own; callers get copies and may mutate them freely.
type Store interface {
	// Put writes rec under id, replacing any existing record.
	Put(ctx context.Context, id string, rec *models.JobRecord) error
	Update(ctx context.Context, id string, u models.JobUpdate) error
	Get(ctx context.Context, id string) (*models.JobRecord, error)
	Close() error
}

// Open builds the backend selected by cfg.StoreType.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreType {
	case "", consts.StoreMemory:
		return NewMemoryStore(), nil
	case consts.StoreSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case consts.StoreRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
			TTL:       cfg.RedisTTLDuration(),
		})
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.StoreType)
	}
}

func checkStatus(s models.JobStatus) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return nil
}
