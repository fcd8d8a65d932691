package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/hubtran/internal"
)

// Mock is an offline Backend for dry runs and tests. It "translates" by
// prefixing the upper-cased language code, preserving whitespace the same
// way a real backend must.
type Mock struct {
	langCode string
}

// NewMock creates a mock backend for langCode.
func NewMock(langCode string) *Mock {
	if langCode == "" {
		langCode = "mock"
	}
	return &Mock{langCode: langCode}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) TranslateBatch(_ context.Context, entries []internal.TranslationEntry) ([]internal.Translation, error) {
	out := make([]internal.Translation, len(entries))
	for i, e := range entries {
		out[i] = internal.Translation{
			SourceText:     e.SourceText,
			TranslatedText: PreserveWhitespace(e.SourceText, m.mockText(e.SourceText)),
		}
	}
	return out, nil
}

func (m *Mock) TranslateOne(_ context.Context, entry internal.TranslationEntry) (string, error) {
	return PreserveWhitespace(entry.SourceText, m.mockText(entry.SourceText)), nil
}

func (m *Mock) mockText(source string) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(m.langCode), strings.TrimSpace(source))
}
