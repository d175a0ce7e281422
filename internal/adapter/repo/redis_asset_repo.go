package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"designer/internal/domain"
)

// AssetRepositoryRedis keeps one JSON document per asset id. SET replaces
// the previous value, which gives the store last-write-wins semantics.
type AssetRepositoryRedis struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

type redisAssetRecord struct {
	ID           string    `json:"id"`
	CanonicalURL string    `json:"canonical_url"`
	OriginalURL  string    `json:"original_url"`
	Degraded     bool      `json:"degraded"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRedisAssetRepository builds a store under keyPrefix. A zero ttl keeps
// records until an external process removes them.
func NewRedisAssetRepository(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *AssetRepositoryRedis {
	return &AssetRepositoryRedis{client: client, keyPrefix: keyPrefix + "asset:", ttl: ttl}
}

func (r *AssetRepositoryRedis) key(id string) string {
	return r.keyPrefix + id
}

func (r *AssetRepositoryRedis) Upsert(ctx context.Context, record *domain.PersistedAssetRecord) error {
	if record == nil {
		return fmt.Errorf("asset record is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	raw, err := json.Marshal(redisAssetRecord{
		ID:           record.ID,
		CanonicalURL: record.CanonicalURL,
		OriginalURL:  record.OriginalURL,
		Degraded:     record.Degraded,
		CreatedAt:    createdAt,
	})
	if err != nil {
		return fmt.Errorf("encode asset record %s: %w", record.ID, err)
	}
	if err := r.client.Set(ctx, r.key(record.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set asset record %s: %w", record.ID, err)
	}
	return nil
}

func (r *AssetRepositoryRedis) GetByID(ctx context.Context, id string) (*domain.PersistedAssetRecord, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis get asset record %s: %w", id, err)
	}
	var stored redisAssetRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode asset record %s: %w", id, err)
	}
	return &domain.PersistedAssetRecord{
		ID:           stored.ID,
		CanonicalURL: stored.CanonicalURL,
		OriginalURL:  stored.OriginalURL,
		Degraded:     stored.Degraded,
		CreatedAt:    stored.CreatedAt,
	}, nil
}

var _ domain.AssetRecordStore = (*AssetRepositoryRedis)(nil)
