package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"designer/internal/http/handlers"
	"designer/internal/infra"
	"designer/internal/middleware"
)

// Options configures cross-cutting concerns of the router.
type Options struct {
	Logger          infra.Logger
	Recorder        middleware.RequestRecorder
	MetricsHandler  http.Handler
	RateLimitPerMin int
	CORSOrigins     []string
	// StaticDir, when set, serves filesystem-backed objects under /static.
	StaticDir string
}

func NewRouter(ctx context.Context, app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger, opts.Recorder),
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.With(middleware.RateLimit(ctx, opts.RateLimitPerMin)).Post("/v1/images/generate", app.ImagesGenerate)

	r.Route("/v1/assets", func(r chi.Router) {
		r.Post("/", app.PersistAsset)
		r.Get("/{id}", app.GetAsset)
		r.Get("/{id}/image", app.AssetImage)
	})
	r.Get("/v1/storage/signed", app.SignedRedirect)

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	return r
}
