package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"designer/internal/adapter/repo"
	"designer/internal/domain"
	"designer/internal/signedurl"
)

type stubStore struct {
	mu        sync.Mutex
	publicURL string
	uploadErr error
	signErr   error
	uploads   map[string][]byte
	types     map[string]string
}

func newStubStore(publicURL string) *stubStore {
	return &stubStore{publicURL: publicURL, uploads: map[string][]byte{}, types: map[string]string{}}
}

func (s *stubStore) Upload(_ context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploads[key] = data
	s.types[key] = contentType
	if s.publicURL == "" {
		return "", nil
	}
	return s.publicURL + "/" + key, nil
}

func (s *stubStore) Sign(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://bucket.test/" + key + "?X-Amz-Signature=abc", nil
}

type failingRecords struct{}

func (failingRecords) Upsert(context.Context, *domain.PersistedAssetRecord) error {
	return errors.New("database unavailable")
}

func (failingRecords) GetByID(context.Context, string) (*domain.PersistedAssetRecord, error) {
	return nil, domain.ErrNotFound
}

type outcomeRecorder struct{ outcomes []domain.PersistOutcome }

func (o *outcomeRecorder) PersistCompleted(outcome domain.PersistOutcome) {
	o.outcomes = append(o.outcomes, outcome)
}

func imageServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(status)
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	svc     *Service
	store   *stubStore
	records domain.AssetRecordStore
	obs     *outcomeRecorder
}

func newFixture(t *testing.T, store *stubStore, records domain.AssetRecordStore) fixture {
	t.Helper()
	cache, err := signedurl.New(store, signedurl.Options{})
	require.NoError(t, err)
	links, err := NewDeliveryLinks("https://designer.test")
	require.NoError(t, err)
	obs := &outcomeRecorder{}
	svc, err := NewService(Options{
		Fetcher:   NewHTTPFetcher(FetcherOptions{Timeout: 2 * time.Second}),
		Store:     store,
		Signer:    cache,
		Records:   records,
		Links:     links,
		KeyPrefix: "designs",
		Now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		Observer:  obs,
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: store, records: records, obs: obs}
}

func TestPersistStoresPublicObject(t *testing.T) {
	src := imageServer(t, http.StatusOK)
	f := newFixture(t, newStubStore("https://cdn.test"), repo.NewMemoryAssetRepository())

	res := f.svc.Persist(context.Background(), "asset-1", src.URL+"/fox.png")

	assert.True(t, res.Success)
	assert.False(t, res.Degraded)
	assert.Equal(t, domain.PersistStored, res.Outcome)
	assert.Equal(t, "https://cdn.test/designs/asset-1", res.CanonicalURL)
	assert.Equal(t, []byte("png-bytes"), f.store.uploads["designs/asset-1"])
	assert.Equal(t, "image/png", f.store.types["designs/asset-1"])

	rec, err := f.svc.Lookup(context.Background(), "asset-1")
	require.NoError(t, err)
	assert.Equal(t, res.CanonicalURL, rec.CanonicalURL)
	assert.Equal(t, src.URL+"/fox.png", rec.OriginalURL)
	assert.Equal(t, []domain.PersistOutcome{domain.PersistStored}, f.obs.outcomes)
}

func TestPersistPrivateBucketUsesDeliveryLink(t *testing.T) {
	src := imageServer(t, http.StatusOK)
	f := newFixture(t, newStubStore(""), repo.NewMemoryAssetRepository())

	res := f.svc.Persist(context.Background(), "asset-2", src.URL)

	require.True(t, res.Success)
	assert.Equal(t, "https://designer.test/v1/storage/signed?key=designs%2Fasset-2", res.CanonicalURL)
}

func TestPersistDegradesOnStepFailure(t *testing.T) {
	cases := []struct {
		name   string
		status int
		setup  func(*stubStore)
	}{
		{name: "fetch status", status: http.StatusNotFound},
		{name: "upload", status: http.StatusOK, setup: func(s *stubStore) { s.uploadErr = errors.New("bucket down") }},
		{name: "sign", status: http.StatusOK, setup: func(s *stubStore) { s.signErr = errors.New("no credentials") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := imageServer(t, tc.status)
			store := newStubStore("")
			if tc.setup != nil {
				tc.setup(store)
			}
			f := newFixture(t, store, repo.NewMemoryAssetRepository())

			res := f.svc.Persist(context.Background(), "asset-3", src.URL+"/x.png")

			assert.True(t, res.Success)
			assert.True(t, res.Degraded)
			assert.Equal(t, domain.PersistDegraded, res.Outcome)
			assert.Equal(t, src.URL+"/x.png", res.CanonicalURL)

			rec, err := f.svc.Lookup(context.Background(), "asset-3")
			require.NoError(t, err)
			assert.True(t, rec.Degraded)
			assert.Equal(t, src.URL+"/x.png", rec.CanonicalURL)
		})
	}
}

func TestPersistDegradesOnUnreachableSource(t *testing.T) {
	f := newFixture(t, newStubStore("https://cdn.test"), repo.NewMemoryAssetRepository())

	res := f.svc.Persist(context.Background(), "asset-4", "http://127.0.0.1:1/missing.png")

	assert.True(t, res.Success)
	assert.Equal(t, domain.PersistDegraded, res.Outcome)
	assert.Equal(t, "http://127.0.0.1:1/missing.png", res.CanonicalURL)
}

func TestPersistReportsUnrecordedWhenMetadataFails(t *testing.T) {
	src := imageServer(t, http.StatusOK)
	f := newFixture(t, newStubStore("https://cdn.test"), failingRecords{})

	res := f.svc.Persist(context.Background(), "asset-5", src.URL)

	assert.False(t, res.Success)
	assert.Equal(t, domain.PersistUnrecorded, res.Outcome)
	assert.Equal(t, []domain.PersistOutcome{domain.PersistUnrecorded}, f.obs.outcomes)
}

func TestPersistSameIDKeepsOneRecord(t *testing.T) {
	src := imageServer(t, http.StatusOK)
	records := repo.NewMemoryAssetRepository()
	f := newFixture(t, newStubStore("https://cdn.test"), records)

	first := f.svc.Persist(context.Background(), "asset-6", src.URL+"/a.png")
	second := f.svc.Persist(context.Background(), "asset-6", src.URL+"/b.png")

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, 1, records.Len())
	rec, err := f.svc.Lookup(context.Background(), "asset-6")
	require.NoError(t, err)
	assert.Equal(t, src.URL+"/b.png", rec.OriginalURL)
}

func TestLookupMissingRecord(t *testing.T) {
	f := newFixture(t, newStubStore(""), repo.NewMemoryAssetRepository())
	_, err := f.svc.Lookup(context.Background(), "asset-none")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPersistNeverSharesObjectsBetweenIDs(t *testing.T) {
	src := imageServer(t, http.StatusOK)
	f := newFixture(t, newStubStore("https://cdn.test"), repo.NewMemoryAssetRepository())

	clean := f.svc.Persist(context.Background(), "asset-a_b", src.URL+"/a.png")
	spaced := f.svc.Persist(context.Background(), "asset-a b", src.URL+"/b.png")

	assert.Equal(t, domain.PersistStored, clean.Outcome)
	assert.Equal(t, "https://cdn.test/designs/asset-a_b", clean.CanonicalURL)
	assert.Equal(t, domain.PersistDegraded, spaced.Outcome)
	assert.Equal(t, src.URL+"/b.png", spaced.CanonicalURL)
	assert.Len(t, f.store.uploads, 1)
}

func TestOwnsKey(t *testing.T) {
	f := newFixture(t, newStubStore(""), repo.NewMemoryAssetRepository())

	assert.True(t, f.svc.OwnsKey("designs/asset-1"))
	assert.False(t, f.svc.OwnsKey("private/credentials.json"))
	assert.False(t, f.svc.OwnsKey("designs/../private/credentials.json"))
}
