// Package orchestrator drives a list of translation entries through a
// single backend in fixed-size batches: bounded batch retries, fallback
// to per-entry translation on exhaustion, strictly sequential batches so
// partial progress is always a resumable prefix.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/hubtran/internal"
	"github.com/valpere/hubtran/internal/backend"
)

// ErrEntryFailed marks an entry whose single-entry retry budget was
// exhausted. The entry is dropped from output, never written.
var ErrEntryFailed = errors.New("entry failed after all retries")

// Config bounds the retry state machine. Zero values take the defaults.
type Config struct {
	BatchSize        int
	MaxBatchRetries  int
	MaxSingleRetries int
	RetryWait        time.Duration
}

// Defaults matching long-standing production settings.
const (
	DefaultBatchSize        = 100
	DefaultMaxBatchRetries  = 3
	DefaultMaxSingleRetries = 3
	DefaultRetryWait        = 2 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxBatchRetries <= 0 {
		c.MaxBatchRetries = DefaultMaxBatchRetries
	}
	if c.MaxSingleRetries <= 0 {
		c.MaxSingleRetries = DefaultMaxSingleRetries
	}
	if c.RetryWait <= 0 {
		c.RetryWait = DefaultRetryWait
	}
	return c
}

// Sink receives each batch's resolved translations. Persist failures are
// logged, never fatal to the run.
type Sink interface {
	SaveTranslations(ctx context.Context, translations []internal.Translation) error
}

// Orchestrator runs the batch translation workflow over one backend.
type Orchestrator struct {
	backend  backend.Backend
	config   Config
	log      *zap.Logger
	sink     Sink
	progress internal.ProgressFunc

	// sleep is swappable in tests to avoid real retry waits.
	sleep func(time.Duration)
}

// New creates an Orchestrator. logger may be nil.
func New(b backend.Backend, config Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		backend: b,
		config:  config.withDefaults(),
		log:     logger,
		sleep:   time.Sleep,
	}
}

// SetSink attaches a persistence sink invoked after each resolved batch.
func (o *Orchestrator) SetSink(sink Sink) { o.sink = sink }

// SetProgress attaches a progress callback invoked after each batch.
func (o *Orchestrator) SetProgress(fn internal.ProgressFunc) { o.progress = fn }

// Run translates entries batch by batch. Every input entry ends up either
// in the returned translations or in the summary's Failed count. A
// cancelled context stops the run cleanly before the next batch: already
// resolved batches stay persisted and the summary reports how far the run
// got so it can simply be repeated.
func (o *Orchestrator) Run(ctx context.Context, entries []internal.TranslationEntry) ([]internal.Translation, internal.RunSummary) {
	var summary internal.RunSummary
	total := len(entries)
	if total == 0 {
		o.log.Info("nothing to translate")
		return nil, summary
	}

	batches := splitIntoBatches(entries, o.config.BatchSize)
	o.log.Info("created batches",
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", o.config.BatchSize),
		zap.Int("entries", total),
	)

	var out []internal.Translation
	for i, batch := range batches {
		if ctx.Err() != nil {
			summary.Interrupted = true
			o.log.Warn("run interrupted; completed batches are saved, re-run to continue",
				zap.Int("batches_completed", summary.BatchesCompleted),
				zap.Int("batches_total", len(batches)),
			)
			break
		}

		o.log.Info("translating batch", zap.Int("batch", i+1), zap.Int("batches", len(batches)))

		resolved, skipped := o.translateBatch(ctx, batch)
		out = append(out, resolved...)
		summary.Translated += len(resolved)
		summary.Failed += len(batch) - len(resolved) - skipped

		if o.sink != nil {
			if err := o.sink.SaveTranslations(ctx, resolved); err != nil {
				o.log.Error("failed to persist batch", zap.Int("batch", i+1), zap.Error(err))
			}
		}

		if skipped > 0 {
			summary.Interrupted = true
			o.log.Warn("run interrupted during single-entry fallback; resolved entries are saved, re-run to continue",
				zap.Int("batch", i+1),
				zap.Int("skipped", skipped),
			)
			break
		}

		summary.BatchesCompleted++
		if o.progress != nil {
			o.progress(summary.Translated, total)
		}
		o.log.Info("batch resolved",
			zap.Int("batch", i+1),
			zap.Int("translated", len(resolved)),
			zap.Int("failed", len(batch)-len(resolved)),
		)
	}

	return out, summary
}

// translateBatch drives one batch through the two-level state machine:
// AttemptingBatch up to MaxBatchRetries, then FallbackSingleEntry. The
// returned slice may be shorter than batch; missing entries failed,
// except for the last skipped entries when the fallback loop observed a
// cancelled context between entries.
func (o *Orchestrator) translateBatch(ctx context.Context, batch []internal.TranslationEntry) ([]internal.Translation, int) {
	for attempt := 1; attempt <= o.config.MaxBatchRetries; attempt++ {
		res, err := o.backend.TranslateBatch(ctx, batch)
		if err == nil && len(res) == len(batch) {
			return res, 0
		}

		if err == nil {
			o.log.Warn("batch length mismatch",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", o.config.MaxBatchRetries),
				zap.Int("want", len(batch)),
				zap.Int("got", len(res)),
			)
		} else {
			o.log.Warn("batch attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", o.config.MaxBatchRetries),
				zap.Error(err),
			)
		}

		if attempt < o.config.MaxBatchRetries {
			o.sleep(o.config.RetryWait)
		}
	}

	o.log.Info("batch retries exhausted, switching to single-entry mode",
		zap.Int("entries", len(batch)),
	)

	out := make([]internal.Translation, 0, len(batch))
	for i, entry := range batch {
		if ctx.Err() != nil {
			return out, len(batch) - i
		}
		text, err := o.translateSingle(ctx, entry)
		if err != nil {
			o.log.Error("entry failed, dropping from output",
				zap.String("source", entry.SourceText),
				zap.Error(err),
			)
			continue
		}
		out = append(out, internal.Translation{SourceText: entry.SourceText, TranslatedText: text})
	}
	return out, 0
}

func (o *Orchestrator) translateSingle(ctx context.Context, entry internal.TranslationEntry) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.config.MaxSingleRetries; attempt++ {
		text, err := o.backend.TranslateOne(ctx, entry)
		if err == nil {
			return text, nil
		}
		lastErr = err
		o.log.Warn("single-entry attempt failed",
			zap.String("source", entry.SourceText),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.config.MaxSingleRetries),
			zap.Error(err),
		)
		if attempt < o.config.MaxSingleRetries {
			o.sleep(o.config.RetryWait)
		}
	}
	return "", errors.Join(ErrEntryFailed, lastErr)
}

// splitIntoBatches partitions entries into ordered, non-overlapping
// groups of size batchSize; the last group may be shorter.
func splitIntoBatches(entries []internal.TranslationEntry, batchSize int) [][]internal.TranslationEntry {
	if len(entries) == 0 {
		return nil
	}
	batches := make([][]internal.TranslationEntry, 0, (len(entries)+batchSize-1)/batchSize)
	for start := 0; start < len(entries); start += batchSize {
		end := start + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batches = append(batches, entries[start:end])
	}
	return batches
}
