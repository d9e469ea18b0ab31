package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/openkraft/keeper/internal/domain"
)

// ProviderSource resolves provider names to their static description.
type ProviderSource interface {
	Provider(name string) (domain.Provider, bool)
}

// Dispatcher sends prompts to whichever provider a routing decision names.
// Local providers are reached through their OpenAI-compatible /v1 API.
type Dispatcher struct {
	providers ProviderSource
	getenv    func(string) string
	logger    *zap.Logger
}

func New(providers ProviderSource, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{providers: providers, getenv: os.Getenv, logger: logger}
}

// WithEnv replaces the environment lookup used for API keys.
func (d *Dispatcher) WithEnv(getenv func(string) string) *Dispatcher {
	d.getenv = getenv
	return d
}

// Complete runs the prompt within the decision's token and time budget.
func (d *Dispatcher) Complete(ctx context.Context, dec domain.RouteDecision, prompt string) (string, error) {
	p, ok := d.providers.Provider(dec.Provider)
	if !ok {
		return "", fmt.Errorf("unknown provider %q", dec.Provider)
	}
	if dec.Budget.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dec.Budget.Timeout)
		defer cancel()
	}

	d.logger.Debug("dispatching prompt",
		zap.String("provider", p.Name),
		zap.String("model", dec.Model),
		zap.Int("max_tokens", dec.Budget.MaxTokens))

	if p.IsLocal() {
		return completeOpenAI(ctx, strings.TrimRight(p.Endpoint, "/")+"/v1/", "local", dec, prompt)
	}

	key := ""
	if p.APIKeyEnv != "" {
		key = d.getenv(p.APIKeyEnv)
	}
	if key == "" {
		return "", fmt.Errorf("%s: API key not set (export %s)", p.Name, p.APIKeyEnv)
	}

	switch p.Name {
	case "anthropic":
		return completeAnthropic(ctx, p.Endpoint, key, dec, prompt)
	case "google":
		return completeGemini(ctx, key, dec, prompt)
	default:
		return completeOpenAI(ctx, strings.TrimRight(p.Endpoint, "/")+"/", key, dec, prompt)
	}
}

func completeOpenAI(ctx context.Context, baseURL, key string, dec domain.RouteDecision, prompt string) (string, error) {
	client := openai.NewClient(openaiopt.WithAPIKey(key), openaiopt.WithBaseURL(baseURL))
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(dec.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
	}
	if dec.Budget.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(dec.Budget.MaxTokens))
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", dec.Provider, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s completion: no choices returned", dec.Provider)
	}
	return completion.Choices[0].Message.Content, nil
}

func completeAnthropic(ctx context.Context, endpoint, key string, dec domain.RouteDecision, prompt string) (string, error) {
	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(key)}
	if endpoint != "" {
		opts = append(opts, anthropicopt.WithBaseURL(strings.TrimRight(endpoint, "/")+"/"))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(dec.Budget.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(domain.BudgetFor(domain.TierSimple).MaxTokens)
	}
	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(dec.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic completion: no text in response")
	}
	return sb.String(), nil
}

func completeGemini(ctx context.Context, key string, dec domain.RouteDecision, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return "", fmt.Errorf("creating gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(dec.Model)
	if dec.Budget.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(dec.Budget.MaxTokens))
	}
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini completion: no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
