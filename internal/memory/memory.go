// Package memory persists resolved translations and the human review queue
// in a local sqlite database. Keys are NFC-normalized so visually identical
// source strings from different files collapse to one row.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/hubtran/internal"
)

type Store struct {
	db   *sql.DB
	lang string
	log  *zap.Logger
}

// New opens (creating if needed) the database at dbPath for the given target
// language code. A nil logger disables logging.
func New(dbPath, targetLang string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, lang: targetLang, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- translation_memory holds the latest accepted translation per source string
	CREATE TABLE IF NOT EXISTS translation_memory (
		source_text TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (source_text, target_lang)
	);

	-- review_queue holds translations flagged below the quality threshold,
	-- awaiting a human verdict
	CREATE TABLE IF NOT EXISTS review_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_text TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		quality_score REAL NOT NULL,
		reasons TEXT,
		status TEXT DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		resolved_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_review_status ON review_queue(status, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTranslations upserts a batch into the memory, last write wins. A row
// that fails to persist is logged and skipped so one bad entry cannot sink
// the rest of the batch.
func (s *Store) SaveTranslations(ctx context.Context, translations []internal.Translation) error {
	for _, t := range translations {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO translation_memory (source_text, target_lang, translated_text, usage_count, updated_at)
			 VALUES (?, ?, ?, 1, ?)
			 ON CONFLICT(source_text, target_lang) DO UPDATE SET
				translated_text = excluded.translated_text,
				updated_at = excluded.updated_at`,
			normalizeKey(t.SourceText), s.lang, t.TranslatedText, time.Now())
		if err != nil {
			s.log.Warn("failed to persist translation",
				zap.String("source_text", t.SourceText),
				zap.Error(err))
		}
	}
	return nil
}

// Lookup returns the stored translation for sourceText, if any, and bumps
// its usage counter.
func (s *Store) Lookup(ctx context.Context, sourceText string) (string, bool, error) {
	key := normalizeKey(sourceText)

	var translated string
	err := s.db.QueryRowContext(ctx,
		`SELECT translated_text FROM translation_memory WHERE source_text = ? AND target_lang = ?`,
		key, s.lang).Scan(&translated)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, updated_at = ? WHERE source_text = ? AND target_lang = ?`,
		time.Now(), key, s.lang)

	return translated, true, err
}

// Untranslated filters entries down to those with no stored translation,
// preserving input order. Re-running a job against the same database only
// sends new strings to the backend.
func (s *Store) Untranslated(ctx context.Context, entries []internal.TranslationEntry) ([]internal.TranslationEntry, error) {
	var pending []internal.TranslationEntry
	for _, e := range entries {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM translation_memory WHERE source_text = ? AND target_lang = ?`,
			normalizeKey(e.SourceText), s.lang).Scan(&n)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

// QueueReview enqueues a below-threshold result for human review.
func (s *Store) QueueReview(ctx context.Context, res internal.TranslationResult) error {
	reasons, err := json.Marshal(res.ReviewReasons)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_queue (source_text, target_lang, translated_text, quality_score, reasons) VALUES (?, ?, ?, ?, ?)`,
		normalizeKey(res.SourceText), s.lang, res.TranslatedText, res.QualityScore, string(reasons))
	return err
}

// ReviewItem is a pending row from the review queue.
type ReviewItem struct {
	ID             int64
	SourceText     string
	TranslatedText string
	QualityScore   float64
	Reasons        []string
	CreatedAt      time.Time
}

// PendingReviews lists unresolved review items, oldest first.
func (s *Store) PendingReviews(ctx context.Context) ([]ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, translated_text, quality_score, reasons, created_at
		 FROM review_queue WHERE status = 'pending' AND target_lang = ? ORDER BY created_at`,
		s.lang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ReviewItem
	for rows.Next() {
		var item ReviewItem
		var reasons sql.NullString
		if err := rows.Scan(&item.ID, &item.SourceText, &item.TranslatedText, &item.QualityScore, &reasons, &item.CreatedAt); err != nil {
			return nil, err
		}
		if reasons.Valid && reasons.String != "" {
			if err := json.Unmarshal([]byte(reasons.String), &item.Reasons); err != nil {
				return nil, fmt.Errorf("corrupt reasons for review %d: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Approve resolves a review item, optionally overriding the translated text,
// and promotes the result into the translation memory.
func (s *Store) Approve(ctx context.Context, id int64, override string) error {
	var source, translated string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_text, translated_text FROM review_queue WHERE id = ? AND status = 'pending'`,
		id).Scan(&source, &translated)
	if err == sql.ErrNoRows {
		return fmt.Errorf("review %d not found or already resolved", id)
	}
	if err != nil {
		return err
	}

	if override != "" {
		translated = override
	}

	if err := s.SaveTranslations(ctx, []internal.Translation{{SourceText: source, TranslatedText: translated}}); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE review_queue SET status = 'approved', translated_text = ?, resolved_at = ? WHERE id = ?`,
		translated, time.Now(), id)
	return err
}

// Reject resolves a review item without promoting it.
func (s *Store) Reject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET status = 'rejected', resolved_at = ? WHERE id = ? AND status = 'pending'`,
		time.Now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("review %d not found or already resolved", id)
	}
	return nil
}

// Stats summarises memory and review queue usage for the target language.
type Stats struct {
	MemoryEntries  int64
	TotalUsage     int64
	PendingReviews int64
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(usage_count), 0) FROM translation_memory WHERE target_lang = ?`,
		s.lang).Scan(&stats.MemoryEntries, &stats.TotalUsage)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_queue WHERE status = 'pending' AND target_lang = ?`,
		s.lang).Scan(&stats.PendingReviews)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func normalizeKey(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
