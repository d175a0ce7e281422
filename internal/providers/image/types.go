package image

import (
	"context"

	"designer/internal/domain"
)

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt string
	Layout domain.Layout
	Width  int
	Height int
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (domain.GeneratedAsset, error)
}

// Strategy names the provider the router dispatches to.
type Strategy string

const (
	StrategyMock Strategy = "mock"
	StrategyReal Strategy = "real"
)

// SelectStrategy picks the real provider only in production with a credential.
func SelectStrategy(production bool, apiKey string) Strategy {
	if !production || apiKey == "" {
		return StrategyMock
	}
	return StrategyReal
}
