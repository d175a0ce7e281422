package image

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"designer/internal/domain"
)

// placeholderIDs index a fixed set of stock photos served by the mock base URL.
var placeholderIDs = []int{237, 433, 582, 659, 718, 1025}

// MockGenerator maps a prompt to one of a fixed set of placeholder images.
// The same prompt always yields the same image.
type MockGenerator struct {
	baseURL string
}

func NewMockGenerator(baseURL string) *MockGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://picsum.photos"
	}
	return &MockGenerator{baseURL: baseURL}
}

func (g *MockGenerator) Generate(_ context.Context, req GenerateRequest) (domain.GeneratedAsset, error) {
	return domain.GeneratedAsset{
		SourceURL:    g.URLFor(req.Prompt, req.Width, req.Height),
		ProviderKind: domain.ProviderMock,
		Width:        req.Width,
		Height:       req.Height,
	}, nil
}

// URLFor returns the placeholder URL selected for prompt.
func (g *MockGenerator) URLFor(prompt string, width, height int) string {
	id := placeholderIDs[placeholderIndex(prompt)]
	return fmt.Sprintf("%s/id/%d/%d/%d", g.baseURL, id, width, height)
}

func placeholderIndex(prompt string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return int(h.Sum32() % uint32(len(placeholderIDs)))
}

var _ Generator = (*MockGenerator)(nil)
