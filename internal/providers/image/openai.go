package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"designer/internal/domain"
)

const defaultImageModel = "dall-e-3"

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// OpenAIGenerator calls the OpenAI Images API once per request. Retries are
// disabled; failures surface as domain.UpstreamProviderError.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai image generator: api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultImageModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenAIGenerator{client: openai.NewClient(reqOpts...), model: model, timeout: timeout}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (domain.GeneratedAsset, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(g.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(fmt.Sprintf("%dx%d", req.Width, req.Height)),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return domain.GeneratedAsset{}, &domain.UpstreamProviderError{Message: providerMessage(err), Err: err}
	}
	if resp == nil || len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return domain.GeneratedAsset{}, &domain.UpstreamProviderError{Message: "image provider returned no image"}
	}
	return domain.GeneratedAsset{
		SourceURL:    strings.TrimSpace(resp.Data[0].URL),
		ProviderKind: domain.ProviderReal,
		Width:        req.Width,
		Height:       req.Height,
	}, nil
}

func providerMessage(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "image provider timed out"
	}
	return err.Error()
}

var _ Generator = (*OpenAIGenerator)(nil)
