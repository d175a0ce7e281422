// Package assets copies generated images into durable storage and records
// where their bytes are delivered from.
package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"designer/internal/domain"
	"designer/internal/infra"
	"designer/internal/storage"
)

// Fetcher retrieves remote bytes.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*Download, error)
}

// SignResolver returns a signed URL for an object key.
type SignResolver interface {
	Resolve(ctx context.Context, objectKey string) (string, error)
}

// Observer is notified once per Persist call.
type Observer interface {
	PersistCompleted(outcome domain.PersistOutcome)
}

// PersistResult reports what Persist achieved. Success is false only when the
// metadata write failed.
type PersistResult struct {
	ID           string
	Success      bool
	CanonicalURL string
	Degraded     bool
	Outcome      domain.PersistOutcome
}

type Options struct {
	Fetcher   Fetcher
	Store     storage.ObjectStore
	Signer    SignResolver
	Records   domain.AssetRecordStore
	Links     DeliveryLinks
	KeyPrefix string
	Timeout   time.Duration
	Now       func() time.Time
	Observer  Observer
	Logger    *infra.Logger
}

// Service implements asset persistence and lookup.
type Service struct {
	fetcher   Fetcher
	store     storage.ObjectStore
	signer    SignResolver
	records   domain.AssetRecordStore
	links     DeliveryLinks
	keyPrefix string
	timeout   time.Duration
	now       func() time.Time
	observer  Observer
	logger    infra.Logger
}

func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Fetcher == nil:
		return nil, errors.New("assets: fetcher is required")
	case opts.Store == nil:
		return nil, errors.New("assets: object store is required")
	case opts.Signer == nil:
		return nil, errors.New("assets: signer is required")
	case opts.Records == nil:
		return nil, errors.New("assets: record store is required")
	}
	s := &Service{
		fetcher:   opts.Fetcher,
		store:     opts.Store,
		signer:    opts.Signer,
		records:   opts.Records,
		links:     opts.Links,
		keyPrefix: opts.KeyPrefix,
		timeout:   opts.Timeout,
		now:       opts.Now,
		observer:  opts.Observer,
		logger:    infra.NopLogger(),
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Persist copies sourceURL into object storage under a key derived from id
// and records the resulting canonical URL. Storage failures degrade to the
// source URL instead of failing.
func (s *Service) Persist(ctx context.Context, id, sourceURL string) PersistResult {
	log := s.logger.With().Str("asset_id", id).Logger()

	canonical, err := s.copyToStorage(ctx, id, sourceURL)
	degraded := err != nil
	if degraded {
		log.Warn().Err(err).Str("source_url", sourceURL).Msg("asset persisted in degraded mode")
		canonical = sourceURL
	}

	record := &domain.PersistedAssetRecord{
		ID:           id,
		CanonicalURL: canonical,
		OriginalURL:  sourceURL,
		CreatedAt:    s.now().UTC(),
		Degraded:     degraded,
	}
	result := PersistResult{ID: id, CanonicalURL: canonical, Degraded: degraded}

	upsertCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.records.Upsert(upsertCtx, record); err != nil {
		log.Error().Err(err).Msg("asset record write failed")
		result.Outcome = domain.PersistUnrecorded
		s.observe(result.Outcome)
		return result
	}

	result.Success = true
	result.Outcome = domain.PersistStored
	if degraded {
		result.Outcome = domain.PersistDegraded
	}
	log.Info().Str("outcome", string(result.Outcome)).Str("canonical_url", canonical).Msg("asset persisted")
	s.observe(result.Outcome)
	return result
}

// copyToStorage fetches, uploads and resolves the canonical URL.
func (s *Service) copyToStorage(ctx context.Context, id, sourceURL string) (string, error) {
	dl, err := s.fetcher.Get(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	if !dl.OK() {
		return "", fmt.Errorf("fetch source: upstream status %d", dl.Status)
	}
	contentType := strings.TrimSpace(dl.ContentType)
	if contentType == "" {
		contentType = http.DetectContentType(dl.Body)
	}

	key, err := storage.ObjectKey(s.keyPrefix, id)
	if err != nil {
		return "", err
	}
	uploadCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	publicURL, err := s.store.Upload(uploadCtx, key, dl.Body, contentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if publicURL != "" {
		return publicURL, nil
	}

	if _, err := s.signer.Resolve(uploadCtx, key); err != nil {
		return "", err
	}
	return s.links.URL(key), nil
}

// Lookup returns the record for id or domain.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, id string) (*domain.PersistedAssetRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.records.GetByID(ctx, id)
}

// OwnsKey reports whether key names an object this service writes.
func (s *Service) OwnsKey(key string) bool {
	return storage.OwnsKey(s.keyPrefix, key)
}

func (s *Service) observe(outcome domain.PersistOutcome) {
	if s.observer != nil {
		s.observer.PersistCompleted(outcome)
	}
}
