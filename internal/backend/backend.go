// Package backend defines the contract a pluggable translation backend
// must satisfy and the response-handling helpers shared by every
// LLM-backed implementation: code-fence stripping, JSON payload slicing
// and whitespace normalization.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/valpere/hubtran/internal"
)

// Backend translates entries. TranslateBatch may fail outright or return
// fewer (or more) results than entries; callers must check the length
// explicitly. TranslateOne returns an error when the entry could not be
// translated at all; the caller must not invent output for it.
type Backend interface {
	Name() string
	TranslateBatch(ctx context.Context, entries []internal.TranslationEntry) ([]internal.Translation, error)
	TranslateOne(ctx context.Context, entry internal.TranslationEntry) (string, error)
}

// Completer is the free-form LLM call used by the regional reviewer
// stage. Backends that are not LLMs (cloud translate, mock) do not
// implement it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// PromptContext is optional application context rendered into every
// translation prompt: domain, tone, glossary and do-not-translate terms.
type PromptContext struct {
	Domain         string            `json:"domain,omitempty"`
	Tone           string            `json:"tone,omitempty"`
	Description    string            `json:"description,omitempty"`
	Glossary       map[string]string `json:"glossary,omitempty"`
	DoNotTranslate []string          `json:"do_not_translate,omitempty"`
	// Guide is a free-form standardization guide appended verbatim.
	Guide string `json:"guide,omitempty"`
}

var (
	// ErrNoJSONPayload means the model response contained no balanced
	// JSON array or object region after fence stripping.
	ErrNoJSONPayload = errors.New("no JSON payload in response")

	// ErrEmptyResponse means the model returned no text at all.
	ErrEmptyResponse = errors.New("empty response from model")
)

// PreserveWhitespace reproduces the leading and trailing ASCII space runs
// of source around the trimmed translated text. LLMs routinely strip or
// duplicate surrounding whitespace; the rest of the pipeline assumes this
// normalization already happened at the backend boundary.
func PreserveWhitespace(source, translated string) string {
	if source == "" {
		return translated
	}
	leading := len(source) - len(strings.TrimLeft(source, " "))
	trailing := len(source) - len(strings.TrimRight(source, " "))
	return strings.Repeat(" ", leading) + strings.TrimSpace(translated) + strings.Repeat(" ", trailing)
}

// CleanResponse strips Markdown code fences and any surrounding prose,
// returning the outermost balanced [...] or {...} region. If no such
// region exists it returns ErrNoJSONPayload: a backend must fail parsing
// rather than hand partial data downstream.
func CleanResponse(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", ErrEmptyResponse
	}

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```json"))
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```"))
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}

	start := strings.IndexByte(cleaned, '[')
	end := strings.LastIndexByte(cleaned, ']')
	if start == -1 || end == -1 || end < start {
		start = strings.IndexByte(cleaned, '{')
		end = strings.LastIndexByte(cleaned, '}')
	}
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: %q", ErrNoJSONPayload, truncate(cleaned, 80))
	}
	return cleaned[start : end+1], nil
}

// batchItem is the per-entry object every LLM backend asks the model to
// return for batch calls.
type batchItem struct {
	Translated string `json:"translated"`
}

// ParseBatchResponse extracts the ordered translation list from a raw
// model response. Accepted shapes: an array of {"translated": ...}
// objects, a bare array of strings, or an object with a "translations"
// array (models drift between these).
func ParseBatchResponse(raw string) ([]string, error) {
	payload, err := CleanResponse(raw)
	if err != nil {
		return nil, err
	}

	var items []batchItem
	if err := json.Unmarshal([]byte(payload), &items); err == nil {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.Translated
		}
		return out, nil
	}

	var strs []string
	if err := json.Unmarshal([]byte(payload), &strs); err == nil {
		return strs, nil
	}

	var wrapped struct {
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapped); err == nil && wrapped.Translations != nil {
		return wrapped.Translations, nil
	}

	return nil, fmt.Errorf("unexpected batch response shape: %q", truncate(payload, 80))
}

// ParseSingleResponse extracts one translation from a raw model response:
// a {"translated": ...} object or a bare JSON string.
func ParseSingleResponse(raw string) (string, error) {
	payload, err := CleanResponse(raw)
	if err != nil {
		return "", err
	}

	var item batchItem
	if err := json.Unmarshal([]byte(payload), &item); err == nil && item.Translated != "" {
		return item.Translated, nil
	}

	var s string
	if err := json.Unmarshal([]byte(payload), &s); err == nil {
		return s, nil
	}

	return "", fmt.Errorf("unexpected single response shape: %q", truncate(payload, 80))
}

// BuildBatchPrompt renders the batch translation prompt for langCode with
// the optional prompt context and the entries as a JSON array.
func BuildBatchPrompt(langCode string, pctx PromptContext, entries []internal.TranslationEntry) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a translator specialized in ERP/business software, translating to the language '%s'.\n", langCode)
	b.WriteString("Translate the following texts, considering the context where they appear in the code (occurrences), developer comments (comment), and other flags (flags).\n")

	writePromptContext(&b, pctx)

	items, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal entries: %w", err)
	}

	b.WriteString("\nCRITICAL RULES:\n")
	b.WriteString("- Keep placeholders like {}, {0}, #{0}, {name}, %s and %(name)s EXACTLY as they appear.\n")
	b.WriteString("- Keep HTML tags like <b>, <strong>, <br> unchanged; do not replace them with quotes or asterisks.\n")
	b.WriteString("\nItems to translate:\n")
	b.Write(items)
	b.WriteString("\n\nReturn ONLY a single JSON array of objects, each with the key 'translated', in the same order.\n")
	b.WriteString("The output array must have exactly the same number of items as the input.\n")

	return b.String(), nil
}

// BuildSinglePrompt renders the single-entry translation prompt.
func BuildSinglePrompt(langCode string, pctx PromptContext, entry internal.TranslationEntry) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a translator specialized in ERP/business software, translating to the language '%s'.\n", langCode)
	b.WriteString("Translate the text below, considering the context where it appears in the code.\n")

	writePromptContext(&b, pctx)

	item, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	b.WriteString("\nCRITICAL RULES:\n")
	b.WriteString("- Keep placeholders like {0}, %s, {name} EXACTLY as-is.\n")
	b.WriteString("- Keep HTML tags EXACTLY as-is.\n")
	b.WriteString("\nItem to translate:\n")
	b.Write(item)
	b.WriteString("\n\nReturn ONLY a JSON object: {\"translated\": \"your translation\"}\n")

	return b.String(), nil
}

func writePromptContext(b *strings.Builder, pctx PromptContext) {
	if pctx.Domain != "" || pctx.Tone != "" || pctx.Description != "" {
		b.WriteString("\n**Application Context:**\n")
		if pctx.Domain != "" {
			fmt.Fprintf(b, "- Domain: %s\n", pctx.Domain)
		}
		if pctx.Tone != "" {
			fmt.Fprintf(b, "- Tone of Voice: %s\n", pctx.Tone)
		}
		if pctx.Description != "" {
			fmt.Fprintf(b, "- Description: %s\n", pctx.Description)
		}
	}
	if len(pctx.Glossary) > 0 {
		b.WriteString("\n**Glossary (Term -> Translation):**\n")
		for _, term := range sortedKeys(pctx.Glossary) {
			fmt.Fprintf(b, "- %s: %s\n", term, pctx.Glossary[term])
		}
	}
	if len(pctx.DoNotTranslate) > 0 {
		b.WriteString("\n**DO NOT TRANSLATE these terms:**\n")
		b.WriteString(strings.Join(pctx.DoNotTranslate, ", "))
		b.WriteString("\n")
	}
	if pctx.Guide != "" {
		fmt.Fprintf(b, "\n**Standardization Guide:**\n%s\nFollow this guide strictly.\n", pctx.Guide)
	}
}

// toTranslations pairs parsed texts with their source entries, restoring
// each source's surrounding whitespace. One Translation is emitted per
// parsed text, even when the model returned more items than were asked
// for; the caller compares the count against its batch.
func toTranslations(entries []internal.TranslationEntry, texts []string) []internal.Translation {
	out := make([]internal.Translation, 0, len(texts))
	for i, text := range texts {
		if i < len(entries) {
			out = append(out, internal.Translation{
				SourceText:     entries[i].SourceText,
				TranslatedText: PreserveWhitespace(entries[i].SourceText, text),
			})
			continue
		}
		out = append(out, internal.Translation{TranslatedText: text})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
