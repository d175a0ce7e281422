package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"designer/internal/adapter/repo"
	"designer/internal/assets"
	"designer/internal/domain"
	"designer/internal/http/handlers"
	"designer/internal/infra"
	"designer/internal/metrics"
	"designer/internal/providers/image"
	"designer/internal/providers/prompt"
	"designer/internal/proxy"
	"designer/internal/signedurl"
	"designer/internal/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 64)...)

// privateStore behaves like a bucket without a public URL.
type privateStore struct{ *storage.FileStore }

func (s privateStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if _, err := s.FileStore.Upload(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return "", nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, image.GenerateRequest) (domain.GeneratedAsset, error) {
	return domain.GeneratedAsset{}, &domain.UpstreamProviderError{Message: "Your request was rejected by the safety system"}
}

type harness struct {
	api     *httptest.Server
	source  *httptest.Server
	records *repo.AssetRepositoryMemory
}

func newHarness(t *testing.T, private bool, real image.Generator) *harness {
	t.Helper()
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(source.Close)

	var handler http.Handler
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(api.Close)

	logger := infra.NopLogger()
	collector := metrics.NewCollector(nil)
	staticDir := t.TempDir()
	files, err := storage.NewFileStore(staticDir, api.URL+"/static")
	require.NoError(t, err)
	var store storage.ObjectStore = files
	if private {
		store = privateStore{files}
	}

	cache, err := signedurl.New(store, signedurl.Options{Observer: collector})
	require.NoError(t, err)
	links, err := assets.NewDeliveryLinks(api.URL)
	require.NoError(t, err)
	records := repo.NewMemoryAssetRepository()
	fetcher := assets.NewHTTPFetcher(assets.FetcherOptions{Timeout: 2 * time.Second})

	strategy := image.StrategyMock
	if real != nil {
		strategy = image.StrategyReal
	}
	router, err := image.NewRouter(image.RouterOptions{
		Strategy: strategy,
		Mock:     image.NewMockGenerator(source.URL),
		Real:     real,
		Observer: collector,
	})
	require.NoError(t, err)

	svc, err := assets.NewService(assets.Options{
		Fetcher: fetcher, Store: store, Signer: cache, Records: records, Links: links,
		KeyPrefix: "designs", Observer: collector,
	})
	require.NoError(t, err)
	resolver, err := proxy.NewResolver(proxy.Options{
		Records: records, Fetcher: fetcher, Signer: cache, Links: links,
		Prefixes: []string{"asset-", "temp-", "tmp-"}, Observer: collector,
	})
	require.NoError(t, err)

	app := &handlers.App{
		Optimizer:      prompt.NewStaticOptimizer(),
		Images:         router,
		Assets:         svc,
		Proxy:          resolver,
		Signer:         cache,
		PromptObserver: collector,
		Logger:         logger,
	}
	handler = NewRouter(context.Background(), app, Options{
		Logger:          logger,
		Recorder:        collector,
		MetricsHandler:  collector.Handler(),
		RateLimitPerMin: 100,
		StaticDir:       staticDir,
	})
	return &harness{api: api, source: source, records: records}
}

func (h *harness) postJSON(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.api.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (h *harness) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(h.api.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestGeneratePersistAndProxy(t *testing.T) {
	h := newHarness(t, false, nil)

	status, gen := h.postJSON(t, "/v1/images/generate", map[string]string{"prompt": "a blue fox", "layout": "square"})
	require.Equal(t, http.StatusOK, status, gen)
	imageURL := gen["imageUrl"].(string)
	assert.True(t, strings.HasPrefix(imageURL, h.source.URL+"/id/"), imageURL)
	assert.True(t, strings.HasSuffix(imageURL, "/1024/1024"), imageURL)
	assert.Equal(t, "mock", gen["provider"])
	assert.Contains(t, gen["optimizedPrompt"], "high resolution")

	status, persisted := h.postJSON(t, "/v1/assets", map[string]string{"imageUrl": imageURL, "id": "asset-1"})
	require.Equal(t, http.StatusOK, status, persisted)
	assert.Equal(t, true, persisted["success"])
	assert.Equal(t, "stored", persisted["outcome"])
	assert.Equal(t, h.api.URL+"/static/designs/asset-1", persisted["imageUrl"])

	resp, body := h.get(t, "/v1/assets/asset-1/image")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pngBytes, body)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000, immutable", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = h.get(t, "/v1/assets/asset-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, imageURL, rec["originalUrl"])

	resp, _ = h.get(t, "/v1/assets/asset-missing/image")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = h.get(t, "/v1/assets/user-1/image")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `designer_asset_persist_total{outcome="stored"} 1`)
	assert.Contains(t, string(body), `designer_image_generations_total{provider="mock",result="success"} 1`)
}

func TestPrivateBucketDeliversThroughSignedLinks(t *testing.T) {
	h := newHarness(t, true, nil)

	status, persisted := h.postJSON(t, "/v1/assets", map[string]string{"imageUrl": h.source.URL + "/fox.png", "id": "asset-2"})
	require.Equal(t, http.StatusOK, status, persisted)
	canonical := persisted["imageUrl"].(string)
	assert.Equal(t, h.api.URL+"/v1/storage/signed?key=designs%2Fasset-2", canonical)

	resp, _ := h.get(t, strings.TrimPrefix(canonical, h.api.URL))
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), h.api.URL+"/static/designs/asset-2?expires="))

	resp, _ = h.get(t, "/v1/storage/signed?key=private%2Fcredentials.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Location"))

	resp, body := h.get(t, "/v1/assets/asset-2/image")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pngBytes, body)
}

func TestPersistDegradesWhenSourceUnavailable(t *testing.T) {
	h := newHarness(t, false, nil)
	gone := h.source.URL + "/missing.png"
	h.source.Close()

	status, persisted := h.postJSON(t, "/v1/assets", map[string]string{"imageUrl": gone, "id": "temp-3"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, persisted["degraded"])
	assert.Equal(t, "degraded", persisted["outcome"])
	assert.Equal(t, gone, persisted["imageUrl"])

	resp, _ := h.get(t, "/v1/assets/temp-3/image")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestRealProviderFailureCreatesNoRecord(t *testing.T) {
	h := newHarness(t, false, failingGenerator{})

	status, body := h.postJSON(t, "/v1/images/generate", map[string]string{"prompt": "a blue fox"})

	require.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Your request was rejected by the safety system", body["message"])
	assert.Zero(t, h.records.Len())
}
