package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"designer/internal/domain"
)

// AssetRepositoryMemory is a process-local store for development and tests.
type AssetRepositoryMemory struct {
	mu      sync.RWMutex
	records map[string]domain.PersistedAssetRecord
}

func NewMemoryAssetRepository() *AssetRepositoryMemory {
	return &AssetRepositoryMemory{records: make(map[string]domain.PersistedAssetRecord)}
}

func (r *AssetRepositoryMemory) Upsert(ctx context.Context, record *domain.PersistedAssetRecord) error {
	if record == nil {
		return fmt.Errorf("asset record is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := *record
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.records[rec.ID] = rec
	r.mu.Unlock()
	return nil
}

func (r *AssetRepositoryMemory) GetByID(ctx context.Context, id string) (*domain.PersistedAssetRecord, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// Len reports how many records are stored.
func (r *AssetRepositoryMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

var _ domain.AssetRecordStore = (*AssetRepositoryMemory)(nil)
