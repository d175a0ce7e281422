package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"designer/internal/adapter/repo"
	"designer/internal/assets"
	"designer/internal/domain"
	"designer/internal/http/handlers"
	httpapi "designer/internal/http/httpapi"
	"designer/internal/infra"
	"designer/internal/infra/credentials"
	"designer/internal/metrics"
	"designer/internal/providers/image"
	"designer/internal/providers/prompt"
	"designer/internal/proxy"
	"designer/internal/signedurl"
	"designer/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	records, apiKey, closeRecords := buildRecordStore(ctx, cfg, logger)
	defer closeRecords()

	store, staticDir := buildObjectStore(ctx, cfg, logger)

	cache, err := signedurl.New(store, signedurl.Options{
		CacheTTL: cfg.SignedURLCacheTTL,
		SignTTL:  cfg.SignedURLTTL,
		Observer: collector,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build signed url cache")
	}

	links, err := assets.NewDeliveryLinks(cfg.PublicBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid PUBLIC_BASE_URL")
	}
	fetcher := assets.NewHTTPFetcher(assets.FetcherOptions{
		Timeout:  cfg.UpstreamTimeout,
		MaxBytes: cfg.MaxAssetBytes,
	})

	router := buildImageRouter(cfg, apiKey, collector, logger)

	assetSvc, err := assets.NewService(assets.Options{
		Fetcher:   fetcher,
		Store:     store,
		Signer:    cache,
		Records:   records,
		Links:     links,
		KeyPrefix: cfg.StorageKeyPrefix,
		Timeout:   cfg.UpstreamTimeout,
		Observer:  collector,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build asset service")
	}

	resolver, err := proxy.NewResolver(proxy.Options{
		Records:  records,
		Fetcher:  fetcher,
		Signer:   cache,
		Links:    links,
		Prefixes: cfg.AssetIDPrefixes,
		Observer: collector,
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build image proxy")
	}

	app := &handlers.App{
		Optimizer:         buildOptimizer(cfg, apiKey, logger),
		Images:            router,
		Assets:            assetSvc,
		Proxy:             resolver,
		Signer:            cache,
		PromptObserver:    collector,
		Logger:            logger,
		GenerationTimeout: cfg.GenerationTimeout,
		UpstreamTimeout:   cfg.UpstreamTimeout,
	}

	handler := httpapi.NewRouter(ctx, app, httpapi.Options{
		Logger:          logger,
		Recorder:        collector,
		MetricsHandler:  collector.Handler(),
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
		StaticDir:       staticDir,
	})
	server := infra.NewHTTPServer(cfg, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("strategy", string(router.Strategy())).
			Str("metadata", cfg.MetadataBackend).
			Str("storage", cfg.StorageBackend).
			Msg("API listening")
		return server.Run(gctx)
	})
	g.Go(func() error {
		cache.RunSweeper(gctx, time.Minute)
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}

// buildRecordStore returns the metadata store, the provider key found in the
// database when none is configured, and a cleanup func.
func buildRecordStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.AssetRecordStore, string, func()) {
	apiKey := cfg.OpenAIAPIKey
	switch cfg.MetadataBackend {
	case infra.MetadataBackendPostgres:
		if cfg.RunMigrations {
			if err := infra.RunMigrations(ctx, cfg.DatabaseURL, logger); err != nil {
				logger.Fatal().Err(err).Msg("failed to run migrations")
			}
		}
		pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		runner := infra.NewSQLRunner(pool, logger)
		if apiKey == "" {
			stored, err := credentials.NewStore(runner).OpenAIAPIKey(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to read stored provider key")
			}
			apiKey = stored
		}
		return repo.NewAssetRepository(runner), apiKey, pool.Close
	case infra.MetadataBackendRedis:
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		return repo.NewRedisAssetRepository(client, cfg.RedisKeyPrefix, 0), apiKey, func() { _ = client.Close() }
	default:
		logger.Warn().Msg("using in-memory metadata store; records are lost on restart")
		return repo.NewMemoryAssetRepository(), apiKey, func() {}
	}
}

// buildObjectStore returns the object store and, for the filesystem backend,
// the directory served under /static.
func buildObjectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.ObjectStore, string) {
	if cfg.StorageBackend == infra.StorageBackendS3 {
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure s3 storage")
		}
		return store, ""
	}
	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure filesystem storage")
	}
	return store, store.BasePath()
}

func buildImageRouter(cfg *infra.Config, apiKey string, collector *metrics.Collector, logger infra.Logger) *image.Router {
	opts := image.RouterOptions{
		Strategy: image.SelectStrategy(cfg.IsProduction(), apiKey),
		Mock:     image.NewMockGenerator(cfg.MockImageBaseURL),
		Observer: collector,
		Logger:   &logger,
	}
	if opts.Strategy == image.StrategyReal {
		provider, err := image.NewOpenAIGenerator(image.OpenAIOptions{
			APIKey:  apiKey,
			Model:   cfg.OpenAIImageModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.GenerationTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build image provider")
		}
		opts.Real = provider
	}
	router, err := image.NewRouter(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build image router")
	}
	return router
}

func buildOptimizer(cfg *infra.Config, apiKey string, logger infra.Logger) handlers.PromptOptimizer {
	if apiKey == "" {
		return prompt.NewStaticOptimizer()
	}
	return prompt.NewOpenAIOptimizer(prompt.OpenAIOptions{
		APIKey:  apiKey,
		Model:   cfg.OpenAIPromptModel,
		BaseURL: cfg.OpenAIBaseURL,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("prompt optimizer fell back")
		},
	})
}
