package repo

import (
	"context"
	"fmt"
	"time"

	"designer/internal/domain"
	"designer/internal/infra"
	"designer/internal/sqlinline"
)

// AssetRepositoryPG implements domain.AssetRecordStore using PostgreSQL.
type AssetRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(sql infra.SQLExecutor) *AssetRepositoryPG {
	return &AssetRepositoryPG{sql: sql}
}

// Upsert inserts the record or replaces the one already stored under its ID.
func (r *AssetRepositoryPG) Upsert(ctx context.Context, record *domain.PersistedAssetRecord) error {
	if record == nil {
		return fmt.Errorf("asset record is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertAssetRecord,
		record.ID, record.CanonicalURL, record.OriginalURL, record.Degraded, createdAt); err != nil {
		return fmt.Errorf("upsert asset record %s: %w", record.ID, err)
	}
	return nil
}

// GetByID returns domain.ErrNotFound when no record exists.
func (r *AssetRepositoryPG) GetByID(ctx context.Context, id string) (*domain.PersistedAssetRecord, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectAssetRecordByID, id)
	var rec domain.PersistedAssetRecord
	if err := row.Scan(&rec.ID, &rec.CanonicalURL, &rec.OriginalURL, &rec.Degraded, &rec.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select asset record %s: %w", id, err)
	}
	return &rec, nil
}

var _ domain.AssetRecordStore = (*AssetRepositoryPG)(nil)
