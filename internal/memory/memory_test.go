package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/valpere/hubtran/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), "uk", nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveTranslations(ctx, []internal.Translation{
		{SourceText: "Hello", TranslatedText: "Привіт"},
		{SourceText: "Save", TranslatedText: "Зберегти"},
	})
	if err != nil {
		t.Fatalf("SaveTranslations error: %v", err)
	}

	got, found, err := s.Lookup(ctx, "Hello")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if !found || got != "Привіт" {
		t.Errorf("Lookup = %q, %v; want %q, true", got, found, "Привіт")
	}

	_, found, err = s.Lookup(ctx, "Unknown")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if found {
		t.Error("expected miss for unknown text")
	}
}

func TestSaveTranslations_LastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveTranslations(ctx, []internal.Translation{{SourceText: "Hello", TranslatedText: "старий"}})
	s.SaveTranslations(ctx, []internal.Translation{{SourceText: "Hello", TranslatedText: "новий"}})

	got, found, err := s.Lookup(ctx, "Hello")
	if err != nil || !found {
		t.Fatalf("Lookup failed: %v, %v", found, err)
	}
	if got != "новий" {
		t.Errorf("expected the later write, got %q", got)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.MemoryEntries != 1 {
		t.Errorf("upsert must not duplicate rows, got %d", stats.MemoryEntries)
	}
}

func TestLookup_NormalizedKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveTranslations(ctx, []internal.Translation{{SourceText: "  Hello  ", TranslatedText: "Привіт"}})

	got, found, err := s.Lookup(ctx, "Hello")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if !found || got != "Привіт" {
		t.Errorf("whitespace variants must share a key, got %q, %v", got, found)
	}
}

func TestUntranslated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveTranslations(ctx, []internal.Translation{{SourceText: "Hello", TranslatedText: "Привіт"}})

	entries := []internal.TranslationEntry{
		{SourceText: "Hello"},
		{SourceText: "World"},
		{SourceText: "Save"},
	}
	pending, err := s.Untranslated(ctx, entries)
	if err != nil {
		t.Fatalf("Untranslated error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending entries, got %d", len(pending))
	}
	if pending[0].SourceText != "World" || pending[1].SourceText != "Save" {
		t.Errorf("order must be preserved: %+v", pending)
	}
}

func TestReviewQueueFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := internal.TranslationResult{
		SourceText:       "Click {here}",
		TranslatedText:   "Натисніть",
		QualityScore:     0.3,
		NeedsHumanReview: true,
		ReviewReasons:    []string{"Missing placeholders: {here}"},
	}
	if err := s.QueueReview(ctx, res); err != nil {
		t.Fatalf("QueueReview error: %v", err)
	}

	items, err := s.PendingReviews(ctx)
	if err != nil {
		t.Fatalf("PendingReviews error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 pending review, got %d", len(items))
	}
	item := items[0]
	if item.QualityScore != 0.3 || len(item.Reasons) != 1 {
		t.Errorf("unexpected review item: %+v", item)
	}

	if err := s.Approve(ctx, item.ID, "Натисніть {here}"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}

	// Approval promotes the corrected text into the memory.
	got, found, err := s.Lookup(ctx, "Click {here}")
	if err != nil || !found {
		t.Fatalf("Lookup after approve failed: %v, %v", found, err)
	}
	if got != "Натисніть {here}" {
		t.Errorf("expected corrected text in memory, got %q", got)
	}

	items, err = s.PendingReviews(ctx)
	if err != nil {
		t.Fatalf("PendingReviews error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("approved review must leave the queue, %d left", len(items))
	}

	if err := s.Approve(ctx, item.ID, ""); err == nil {
		t.Error("approving a resolved review must fail")
	}
}

func TestReject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := internal.TranslationResult{SourceText: "Broken entry", TranslatedText: "", QualityScore: 0}
	if err := s.QueueReview(ctx, res); err != nil {
		t.Fatalf("QueueReview error: %v", err)
	}

	items, _ := s.PendingReviews(ctx)
	if len(items) != 1 {
		t.Fatalf("expected 1 pending review, got %d", len(items))
	}

	if err := s.Reject(ctx, items[0].ID); err != nil {
		t.Fatalf("Reject error: %v", err)
	}

	// Rejection never touches the memory.
	if _, found, _ := s.Lookup(ctx, "Broken entry"); found {
		t.Error("rejected review must not reach the memory")
	}

	if err := s.Reject(ctx, items[0].ID); err == nil {
		t.Error("rejecting a resolved review must fail")
	}

	if err := s.Reject(ctx, 9999); err == nil {
		t.Error("rejecting an unknown id must fail")
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveTranslations(ctx, []internal.Translation{
		{SourceText: "Hello", TranslatedText: "Привіт"},
		{SourceText: "Save", TranslatedText: "Зберегти"},
	})
	s.Lookup(ctx, "Hello")
	s.QueueReview(ctx, internal.TranslationResult{SourceText: "x", TranslatedText: "y"})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.MemoryEntries != 2 {
		t.Errorf("expected 2 memory entries, got %d", stats.MemoryEntries)
	}
	if stats.TotalUsage != 3 {
		t.Errorf("expected usage 3 (2 inserts + 1 lookup), got %d", stats.TotalUsage)
	}
	if stats.PendingReviews != 1 {
		t.Errorf("expected 1 pending review, got %d", stats.PendingReviews)
	}
}
