package backend

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/valpere/hubtran/internal"
)

// OpenAI-compatible endpoints. Groq and OpenRouter speak the same chat
// completions protocol, so one backend covers all three providers.
const (
	BaseURLGroq       = "https://api.groq.com/openai/v1"
	BaseURLOpenRouter = "https://openrouter.ai/api/v1"
)

const (
	translatorSystemPrompt = "You are a professional translator. Always respond with valid JSON only."

	translateTemperature = 0.3
	completeTemperature  = 0.2
)

// OpenAICompatible is a Backend and Completer on any chat-completions
// endpoint: OpenAI itself, Groq, or OpenRouter.
type OpenAICompatible struct {
	client   openai.Client
	name     string
	model    string
	langCode string
	pctx     PromptContext
}

// NewOpenAICompatible creates a backend for the given provider name
// ("openai", "groq", "openrouter"). An empty baseURL selects the
// provider's well-known endpoint.
func NewOpenAICompatible(provider, apiKey, baseURL, model, langCode string, pctx PromptContext) (*OpenAICompatible, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key not found", provider)
	}
	if baseURL == "" {
		switch provider {
		case "groq":
			baseURL = BaseURLGroq
		case "openrouter":
			baseURL = BaseURLOpenRouter
		}
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAICompatible{
		client:   openai.NewClient(opts...),
		name:     provider,
		model:    model,
		langCode: langCode,
		pctx:     pctx,
	}, nil
}

func (o *OpenAICompatible) Name() string { return o.name }

func (o *OpenAICompatible) TranslateBatch(ctx context.Context, entries []internal.TranslationEntry) ([]internal.Translation, error) {
	prompt, err := BuildBatchPrompt(o.langCode, o.pctx, entries)
	if err != nil {
		return nil, err
	}

	raw, err := o.chat(ctx, translatorSystemPrompt, prompt, translateTemperature)
	if err != nil {
		return nil, err
	}

	texts, err := ParseBatchResponse(raw)
	if err != nil {
		return nil, err
	}
	return toTranslations(entries, texts), nil
}

func (o *OpenAICompatible) TranslateOne(ctx context.Context, entry internal.TranslationEntry) (string, error) {
	prompt, err := BuildSinglePrompt(o.langCode, o.pctx, entry)
	if err != nil {
		return "", err
	}

	raw, err := o.chat(ctx, translatorSystemPrompt, prompt, translateTemperature)
	if err != nil {
		return "", err
	}

	text, err := ParseSingleResponse(raw)
	if err != nil {
		return "", err
	}
	return PreserveWhitespace(entry.SourceText, text), nil
}

// Complete sends a free-form prompt with its own system message.
func (o *OpenAICompatible) Complete(ctx context.Context, system, prompt string) (string, error) {
	return o.chat(ctx, system, prompt, completeTemperature)
}

func (o *OpenAICompatible) chat(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}
	if system != "" {
		messages = []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", o.name, ErrEmptyResponse)
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("%s: %w", o.name, ErrEmptyResponse)
	}
	return content, nil
}
