package prompt

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

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	openAIDefaultTimeout = 15 * time.Second
)

// systemInstruction is sent verbatim on every request.
const systemInstruction = `You rewrite prompts for an image model that prints designs on apparel.
Rules:
1. Answer in the same language as the input prompt.
2. Append a single-composition constraint (one centered subject) unless the prompt already has one.
3. Append a high-resolution qualifier unless the prompt already has one.
4. Specify a background only if the prompt does not mention one.
5. Use positive phrasing only; never describe what should be absent.
Return only the rewritten prompt, without quotes or commentary.`

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	OnFallback func(reason string, err error)
}

// OpenAIOptimizer asks an OpenAI chat model to rewrite the prompt and falls
// back to the deterministic rewrite on any failure.
type OpenAIOptimizer struct {
	client     openai.Client
	hasKey     bool
	model      string
	timeout    time.Duration
	onFallback func(reason string, err error)
}

func NewOpenAIOptimizer(opts OpenAIOptions) *OpenAIOptimizer {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = openAIDefaultTimeout
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenAIOptimizer{
		client:     openai.NewClient(reqOpts...),
		hasKey:     strings.TrimSpace(opts.APIKey) != "",
		model:      model,
		timeout:    timeout,
		onFallback: opts.OnFallback,
	}
}

func (o *OpenAIOptimizer) Optimize(ctx context.Context, rawPrompt string, layout domain.Layout) domain.OptimizedPrompt {
	if !o.hasKey {
		return o.useFallback(rawPrompt, "missing_api_key", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(0.4),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(buildUserMessage(rawPrompt, layout)),
		},
	})
	if err != nil {
		return o.useFallback(rawPrompt, "http_request", err)
	}
	if len(completion.Choices) == 0 {
		return o.useFallback(rawPrompt, "empty_choices", errors.New("no choices"))
	}
	text := strings.Trim(strings.TrimSpace(completion.Choices[0].Message.Content), `"`)
	if text == "" {
		return o.useFallback(rawPrompt, "empty_response", errors.New("empty response"))
	}
	return domain.OptimizedPrompt{Text: ensureQualifiers(text)}
}

func buildUserMessage(rawPrompt string, layout domain.Layout) string {
	orientation := "square"
	switch layout {
	case domain.LayoutTall:
		orientation = "portrait"
	case domain.LayoutWide:
		orientation = "landscape"
	}
	return fmt.Sprintf("Canvas orientation: %s.\nPrompt: %s", orientation, strings.TrimSpace(rawPrompt))
}

func (o *OpenAIOptimizer) useFallback(rawPrompt, reason string, err error) domain.OptimizedPrompt {
	if o.onFallback != nil {
		o.onFallback(reason, err)
	}
	return domain.OptimizedPrompt{Text: Fallback(rawPrompt), UsedFallback: true, FallbackReason: reason}
}

var _ Optimizer = (*OpenAIOptimizer)(nil)
