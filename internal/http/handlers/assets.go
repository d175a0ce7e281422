package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"designer/internal/domain"
)

const (
	generatedIDPrefix = "asset-"
	immutableCache    = "public, max-age=31536000, immutable"
)

var assetIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

type persistRequest struct {
	ImageURL string `json:"imageUrl"`
	ID       string `json:"id"`
}

type persistResponse struct {
	Success  bool   `json:"success"`
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	Degraded bool   `json:"degraded"`
	Outcome  string `json:"outcome"`
}

type assetResponse struct {
	ID          string    `json:"id"`
	ImageURL    string    `json:"imageUrl"`
	OriginalURL string    `json:"originalUrl"`
	Degraded    bool      `json:"degraded"`
	CreatedAt   time.Time `json:"createdAt"`
}

var httpURL = validation.By(func(value any) error {
	raw, _ := value.(string)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
})

func (req persistRequest) validate(r *http.Request) error {
	return validation.ValidateStructWithContext(r.Context(), &req,
		validation.Field(&req.ImageURL, validation.Required, httpURL),
		validation.Field(&req.ID, validation.Length(1, 128), validation.Match(assetIDPattern)),
	)
}

// PersistAsset copies a generated image into storage and records it.
func (a *App) PersistAsset(w http.ResponseWriter, r *http.Request) {
	var req persistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.ID = strings.TrimSpace(req.ID)
	if err := req.validate(r); err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if req.ID == "" {
		req.ID = generatedIDPrefix + uuid.NewString()
	}

	// Persist bounds each step itself; only detach from the client.
	ctx, cancel := detached(r, 0)
	defer cancel()

	res := a.Assets.Persist(ctx, req.ID, req.ImageURL)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	a.json(w, status, persistResponse{
		Success:  res.Success,
		ID:       req.ID,
		ImageURL: res.CanonicalURL,
		Degraded: res.Degraded,
		Outcome:  string(res.Outcome),
	})
}

func (a *App) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := a.Assets.Lookup(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "asset not found")
			return
		}
		a.Logger.Error().Err(err).Str("asset_id", id).Msg("asset lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load asset")
		return
	}
	a.json(w, http.StatusOK, assetResponse{
		ID:          rec.ID,
		ImageURL:    rec.CanonicalURL,
		OriginalURL: rec.OriginalURL,
		Degraded:    rec.Degraded,
		CreatedAt:   rec.CreatedAt,
	})
}

// AssetImage streams the bytes of a persisted asset from this origin.
func (a *App) AssetImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := detached(r, a.UpstreamTimeout)
	defer cancel()

	resp := a.Proxy.Resolve(ctx, chi.URLParam(r, "id"))
	switch {
	case resp.Status == http.StatusOK:
		w.Header().Set("Content-Type", resp.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
		w.Header().Set("Cache-Control", immutableCache)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.Body)
	case resp.Status == http.StatusNotFound:
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
	default:
		a.error(w, resp.Status, "upstream_error", http.StatusText(resp.Status))
	}
}
