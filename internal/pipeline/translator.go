package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/hubtran/internal"
	"github.com/valpere/hubtran/internal/backend"
	"github.com/valpere/hubtran/internal/orchestrator"
)

// TranslatorStage produces the first-pass translation for a unit of
// work: one batch call with bounded retries, then per-entry fallback.
// An entry whose fallback also fails keeps an empty RawTranslation; that
// is a per-entry outcome, not a stage failure.
type TranslatorStage struct {
	backend backend.Backend
	config  orchestrator.Config
	log     *zap.Logger

	sleep func(time.Duration)
}

// NewTranslatorStage creates the stage. logger may be nil.
func NewTranslatorStage(b backend.Backend, config orchestrator.Config, logger *zap.Logger) *TranslatorStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranslatorStage{
		backend: b,
		config:  config,
		log:     logger,
		sleep:   time.Sleep,
	}
}

// Translate fills RawTranslation and FinalText for every entry.
func (t *TranslatorStage) Translate(ctx context.Context, entries []*Entry) error {
	t.log.Info("translating batch", zap.Int("entries", len(entries)))

	plain := make([]internal.TranslationEntry, len(entries))
	for i, e := range entries {
		plain[i] = e.TranslationEntry
	}

	maxRetries := t.config.MaxBatchRetries
	if maxRetries <= 0 {
		maxRetries = orchestrator.DefaultMaxBatchRetries
	}
	wait := t.config.RetryWait
	if wait <= 0 {
		wait = orchestrator.DefaultRetryWait
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		res, err := t.backend.TranslateBatch(ctx, plain)
		if err == nil && len(res) == len(entries) {
			for i, tr := range res {
				entries[i].RawTranslation = tr.TranslatedText
				entries[i].FinalText = tr.TranslatedText
			}
			t.log.Info("batch translated", zap.Int("entries", len(entries)))
			return nil
		}
		t.log.Warn("translator attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err),
		)
		if attempt < maxRetries {
			t.sleep(wait)
		}
	}

	t.log.Info("falling back to single-entry translation")
	return t.translateSingle(ctx, entries)
}

func (t *TranslatorStage) translateSingle(ctx context.Context, entries []*Entry) error {
	maxRetries := t.config.MaxSingleRetries
	if maxRetries <= 0 {
		maxRetries = orchestrator.DefaultMaxSingleRetries
	}
	wait := t.config.RetryWait
	if wait <= 0 {
		wait = orchestrator.DefaultRetryWait
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			// a dead context is a stage failure, not N entry failures
			return err
		}

		var text string
		var err error
		for attempt := 1; attempt <= maxRetries; attempt++ {
			text, err = t.backend.TranslateOne(ctx, e.TranslationEntry)
			if err == nil {
				break
			}
			t.log.Warn("single-entry attempt failed",
				zap.String("source", e.SourceText),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt < maxRetries {
				t.sleep(wait)
			}
		}
		if err != nil {
			t.log.Error("failed to translate entry", zap.String("source", e.SourceText), zap.Error(err))
			continue
		}
		e.RawTranslation = text
		e.FinalText = text
	}
	return nil
}
