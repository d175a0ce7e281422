package domain

import "context"

// AssetRecordStore is the metadata capability backing asset persistence.
// Upsert replaces any existing record with the same ID.
type AssetRecordStore interface {
	Upsert(ctx context.Context, record *PersistedAssetRecord) error
	GetByID(ctx context.Context, id string) (*PersistedAssetRecord, error)
}
