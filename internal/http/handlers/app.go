package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"designer/internal/assets"
	"designer/internal/domain"
	"designer/internal/infra"
	"designer/internal/proxy"
)

type PromptOptimizer interface {
	Optimize(ctx context.Context, rawPrompt string, layout domain.Layout) domain.OptimizedPrompt
}

type ImageGenerator interface {
	Generate(ctx context.Context, optimizedPrompt string, layout domain.Layout) (domain.GeneratedAsset, error)
}

type AssetService interface {
	Persist(ctx context.Context, id, sourceURL string) assets.PersistResult
	Lookup(ctx context.Context, id string) (*domain.PersistedAssetRecord, error)
	OwnsKey(key string) bool
}

type ImageProxy interface {
	Resolve(ctx context.Context, id string) proxy.Response
}

type URLSigner interface {
	Resolve(ctx context.Context, objectKey string) (string, error)
}

// PromptObserver is told about every optimization that fell back.
type PromptObserver interface {
	PromptFallback(reason string)
}

// App carries the dependencies shared by all HTTP handlers.
type App struct {
	Optimizer      PromptOptimizer
	Images         ImageGenerator
	Assets         AssetService
	Proxy          ImageProxy
	Signer         URLSigner
	PromptObserver PromptObserver
	Logger         infra.Logger

	GenerationTimeout time.Duration
	UpstreamTimeout   time.Duration
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

// detached returns a context that survives client disconnects but still
// expires after d.
func detached(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(r.Context())
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
