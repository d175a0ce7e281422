// Package proxy serves persisted asset bytes through the service's own origin.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"designer/internal/assets"
	"designer/internal/domain"
	"designer/internal/infra"
)

const defaultContentType = "application/octet-stream"

// Response is the outcome of a proxy resolution. Body is set only for 200.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// RecordLookup finds the record for an asset id.
type RecordLookup interface {
	GetByID(ctx context.Context, id string) (*domain.PersistedAssetRecord, error)
}

type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*assets.Download, error)
}

type SignResolver interface {
	Resolve(ctx context.Context, objectKey string) (string, error)
}

type Observer interface {
	ProxyResponded(status int)
}

type Options struct {
	Records  RecordLookup
	Fetcher  Fetcher
	Signer   SignResolver
	Links    assets.DeliveryLinks
	Prefixes []string
	Observer Observer
	Logger   *infra.Logger
}

// Resolver maps an asset id to the bytes behind its canonical URL.
type Resolver struct {
	records  RecordLookup
	fetcher  Fetcher
	signer   SignResolver
	links    assets.DeliveryLinks
	prefixes []string
	observer Observer
	logger   infra.Logger
}

func NewResolver(opts Options) (*Resolver, error) {
	if opts.Records == nil || opts.Fetcher == nil || opts.Signer == nil {
		return nil, errors.New("proxy: records, fetcher and signer are required")
	}
	if len(opts.Prefixes) == 0 {
		return nil, errors.New("proxy: at least one asset id prefix is required")
	}
	r := &Resolver{
		records:  opts.Records,
		fetcher:  opts.Fetcher,
		signer:   opts.Signer,
		links:    opts.Links,
		prefixes: opts.Prefixes,
		observer: opts.Observer,
		logger:   infra.NopLogger(),
	}
	if opts.Logger != nil {
		r.logger = *opts.Logger
	}
	return r, nil
}

// Accepts reports whether id belongs to a proxied namespace.
func (r *Resolver) Accepts(id string) bool {
	for _, p := range r.prefixes {
		if strings.HasPrefix(id, p) && len(id) > len(p) {
			return true
		}
	}
	return false
}

// Resolve never returns an error; every failure is expressed as a status.
func (r *Resolver) Resolve(ctx context.Context, id string) Response {
	resp := r.resolve(ctx, id)
	if r.observer != nil {
		r.observer.ProxyResponded(resp.Status)
	}
	return resp
}

func (r *Resolver) resolve(ctx context.Context, id string) Response {
	if !r.Accepts(id) {
		return Response{Status: http.StatusNotFound}
	}
	log := r.logger.With().Str("asset_id", id).Logger()

	record, err := r.records.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return Response{Status: http.StatusNotFound}
	}
	if err != nil {
		log.Error().Err(err).Msg("proxy record lookup failed")
		return Response{Status: http.StatusServiceUnavailable}
	}

	dl, err := r.fetch(ctx, record.CanonicalURL)
	var upstream *domain.ProxyUpstreamError
	switch {
	case errors.As(err, &upstream):
		log.Debug().Int("upstream_status", upstream.Status).Msg("proxy upstream returned non-success")
		return Response{Status: upstream.Status}
	case err != nil:
		log.Warn().Err(err).Msg("proxy upstream fetch failed")
		return Response{Status: http.StatusBadGateway}
	}
	contentType := dl.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	return Response{Status: http.StatusOK, Body: dl.Body, ContentType: contentType}
}

// fetch downloads target, signing it first when it is a delivery link. A
// non-2xx answer comes back as *domain.ProxyUpstreamError.
func (r *Resolver) fetch(ctx context.Context, target string) (*assets.Download, error) {
	if key, ok := r.links.ObjectKey(target); ok {
		signed, err := r.signer.Resolve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("proxy: sign %s: %w", key, err)
		}
		target = signed
	}
	dl, err := r.fetcher.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("proxy: fetch: %w", err)
	}
	if !dl.OK() {
		return nil, &domain.ProxyUpstreamError{Status: dl.Status}
	}
	return dl, nil
}
