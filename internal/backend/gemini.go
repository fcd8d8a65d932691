package backend

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/valpere/hubtran/internal"
)

// Gemini is a Backend and Completer on the Google Gemini API.
type Gemini struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	langCode string
	pctx     PromptContext
}

// NewGemini creates a Gemini backend translating to langCode.
func NewGemini(ctx context.Context, apiKey, modelName, langCode string, pctx PromptContext) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key not found")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	return &Gemini{
		client:   client,
		model:    model,
		langCode: langCode,
		pctx:     pctx,
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Close closes the underlying genai client.
func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) TranslateBatch(ctx context.Context, entries []internal.TranslationEntry) ([]internal.Translation, error) {
	prompt, err := BuildBatchPrompt(g.langCode, g.pctx, entries)
	if err != nil {
		return nil, err
	}

	raw, err := g.generate(ctx, nil, prompt)
	if err != nil {
		return nil, err
	}

	texts, err := ParseBatchResponse(raw)
	if err != nil {
		return nil, err
	}
	return toTranslations(entries, texts), nil
}

func (g *Gemini) TranslateOne(ctx context.Context, entry internal.TranslationEntry) (string, error) {
	prompt, err := BuildSinglePrompt(g.langCode, g.pctx, entry)
	if err != nil {
		return "", err
	}

	raw, err := g.generate(ctx, nil, prompt)
	if err != nil {
		return "", err
	}

	text, err := ParseSingleResponse(raw)
	if err != nil {
		return "", err
	}
	return PreserveWhitespace(entry.SourceText, text), nil
}

// Complete sends a free-form prompt and returns the raw response text.
func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	var sys *genai.Content
	if system != "" {
		sys = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return g.generate(ctx, sys, prompt)
}

func (g *Gemini) generate(ctx context.Context, system *genai.Content, prompt string) (string, error) {
	model := g.model
	if system != nil {
		// per-call system instruction without mutating the shared model
		m := *g.model
		m.SystemInstruction = system
		model = &m
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("gemini blocked: %v", resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	text, ok := cand.Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected part type %T in gemini response", cand.Content.Parts[0])
	}
	if string(text) == "" {
		return "", ErrEmptyResponse
	}
	return string(text), nil
}
