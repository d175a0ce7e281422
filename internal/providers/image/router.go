package image

import (
	"context"
	"errors"
	"fmt"

	"designer/internal/domain"
	"designer/internal/infra"
)

// Observer is notified of every dispatched generation.
type Observer interface {
	GenerationCompleted(kind domain.ProviderKind, err error)
}

// Router dispatches generation to the provider chosen by its Strategy.
type Router struct {
	strategy Strategy
	mock     Generator
	real     Generator
	observer Observer
	logger   infra.Logger
}

type RouterOptions struct {
	Strategy Strategy
	Mock     Generator
	Real     Generator
	Observer Observer
	Logger   *infra.Logger
}

func NewRouter(opts RouterOptions) (*Router, error) {
	switch opts.Strategy {
	case StrategyMock:
		if opts.Mock == nil {
			return nil, errors.New("image router: mock generator is required")
		}
	case StrategyReal:
		if opts.Real == nil {
			return nil, errors.New("image router: real generator is required")
		}
	default:
		return nil, fmt.Errorf("image router: unknown strategy %q", opts.Strategy)
	}
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Router{
		strategy: opts.Strategy,
		mock:     opts.Mock,
		real:     opts.Real,
		observer: opts.Observer,
		logger:   logger,
	}, nil
}

// Strategy reports the provider selection made at construction.
func (r *Router) Strategy() Strategy {
	return r.strategy
}

// Generate validates the layout and dispatches to the selected provider. Only
// the real provider can fail, always with *domain.UpstreamProviderError.
func (r *Router) Generate(ctx context.Context, optimizedPrompt string, layout domain.Layout) (domain.GeneratedAsset, error) {
	width, height, err := layout.Dimensions()
	if err != nil {
		return domain.GeneratedAsset{}, err
	}
	req := GenerateRequest{Prompt: optimizedPrompt, Layout: layout, Width: width, Height: height}

	kind := domain.ProviderMock
	gen := r.mock
	if r.strategy == StrategyReal {
		kind = domain.ProviderReal
		gen = r.real
	}

	asset, err := gen.Generate(ctx, req)
	if err != nil && kind == domain.ProviderReal {
		var upstream *domain.UpstreamProviderError
		if !errors.As(err, &upstream) {
			err = &domain.UpstreamProviderError{Message: err.Error(), Err: err}
		}
	}
	if r.observer != nil {
		r.observer.GenerationCompleted(kind, err)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("provider", string(kind)).Str("layout", string(layout)).Msg("image generation failed")
		return domain.GeneratedAsset{}, err
	}
	r.logger.Debug().Str("provider", string(kind)).Str("url", asset.SourceURL).Msg("image generated")
	return asset, nil
}
