package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"designer/internal/domain"
)

const maxPromptLength = 4000

type imageGenerateRequest struct {
	Prompt string `json:"prompt"`
	Layout string `json:"layout"`
}

type imageGenerateResponse struct {
	ImageURL        string `json:"imageUrl"`
	OptimizedPrompt string `json:"optimizedPrompt"`
	UsedFallback    bool   `json:"usedFallback"`
	Provider        string `json:"provider"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

func (req *imageGenerateRequest) normalize() {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Layout = strings.ToLower(strings.TrimSpace(req.Layout))
}

func (req imageGenerateRequest) validate(r *http.Request) error {
	return validation.ValidateStructWithContext(r.Context(), &req,
		validation.Field(&req.Prompt, validation.Required, validation.RuneLength(1, maxPromptLength)),
		validation.Field(&req.Layout, validation.In(string(domain.LayoutSquare), string(domain.LayoutTall), string(domain.LayoutWide))),
	)
}

// ImagesGenerate optimizes the prompt and dispatches it to the configured
// image provider. Nothing is persisted.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.normalize()
	if err := req.validate(r); err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	layout, err := domain.ParseLayout(req.Layout)
	if err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	ctx, cancel := detached(r, a.GenerationTimeout)
	defer cancel()

	optimized := a.Optimizer.Optimize(ctx, req.Prompt, layout)
	if optimized.UsedFallback && a.PromptObserver != nil {
		a.PromptObserver.PromptFallback(optimized.FallbackReason)
	}

	asset, err := a.Images.Generate(ctx, optimized.Text, layout)
	if err != nil {
		var upstream *domain.UpstreamProviderError
		switch {
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.As(err, &upstream):
			a.error(w, http.StatusInternalServerError, "provider_failed", upstream.Message)
		default:
			a.Logger.Error().Err(err).Msg("image generation failed")
			a.error(w, http.StatusInternalServerError, "internal", "image generation failed")
		}
		return
	}

	a.json(w, http.StatusOK, imageGenerateResponse{
		ImageURL:        asset.SourceURL,
		OptimizedPrompt: optimized.Text,
		UsedFallback:    optimized.UsedFallback,
		Provider:        string(asset.ProviderKind),
		Width:           asset.Width,
		Height:          asset.Height,
	})
}
