package backend

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/valpere/hubtran/internal"
)

// CloudTranslate is a non-LLM Backend on the Google Cloud Translation
// API. It satisfies the same contract as the LLM backends (including the
// whitespace discipline) but has no free-form completion support, so it
// cannot drive the agent pipeline's reviewer stage.
type CloudTranslate struct {
	client *translate.Client
	target language.Tag
}

// NewCloudTranslate creates a Cloud Translation backend for langCode.
// credentialsFile may be empty to use ambient application credentials.
func NewCloudTranslate(ctx context.Context, credentialsFile, langCode string) (*CloudTranslate, error) {
	target, err := language.Parse(langCode)
	if err != nil {
		return nil, fmt.Errorf("invalid target language %q: %w", langCode, err)
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create translate client: %w", err)
	}

	return &CloudTranslate{client: client, target: target}, nil
}

func (c *CloudTranslate) Name() string { return "googlecloud" }

// Close closes the underlying API client.
func (c *CloudTranslate) Close() error { return c.client.Close() }

func (c *CloudTranslate) TranslateBatch(ctx context.Context, entries []internal.TranslationEntry) ([]internal.Translation, error) {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.SourceText
	}

	translations, err := c.client.Translate(ctx, texts, c.target, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud translate: %w", err)
	}

	out := make([]string, len(translations))
	for i, tr := range translations {
		out[i] = tr.Text
	}
	return toTranslations(entries, out), nil
}

func (c *CloudTranslate) TranslateOne(ctx context.Context, entry internal.TranslationEntry) (string, error) {
	translations, err := c.client.Translate(ctx, []string{entry.SourceText}, c.target, nil)
	if err != nil {
		return "", fmt.Errorf("cloud translate: %w", err)
	}
	if len(translations) == 0 {
		return "", fmt.Errorf("cloud translate: no translation returned")
	}
	return PreserveWhitespace(entry.SourceText, translations[0].Text), nil
}
