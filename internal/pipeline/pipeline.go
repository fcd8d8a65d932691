// Package pipeline implements the three-stage agent flow: a translator
// stage produces a first-pass translation, a regional reviewer applies
// deterministic terminology rules plus an LLM cultural pass, and a
// quality gate scores the final text and routes it to auto-accept or
// human review.
//
// The pipeline trades three backend calls per unit of work for
// explainability, and it does not degrade: if a stage itself fails, the
// whole unit of work aborts with a diagnostic snapshot instead of
// silently shipping lower-quality output.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/valpere/hubtran/internal"
)

// Entry wraps an immutable TranslationEntry with the intermediate outputs
// each stage writes exactly once, in stage order.
type Entry struct {
	internal.TranslationEntry

	RawTranslation      string // translator stage output
	ReviewedTranslation string // reviewer stage output
	FinalText           string // what the quality gate sees
}

// Translator is the first stage: fills RawTranslation (and FinalText) for
// every entry. A returned error is a stage-level hard failure, not a
// per-entry one.
type Translator interface {
	Translate(ctx context.Context, entries []*Entry) error
}

// Reviewer is the second stage: fills ReviewedTranslation and FinalText.
type Reviewer interface {
	Review(ctx context.Context, entries []*Entry) error
}

// Gate is the third stage: scores one final text and produces the
// terminal result. *quality.Engine satisfies it.
type Gate interface {
	Gate(source, translation string) internal.TranslationResult
}

// EntrySnapshot is the per-entry intermediate state captured when a stage
// fails, for external inspection.
type EntrySnapshot struct {
	SourceText          string `json:"source_text"`
	RawTranslation      string `json:"raw_translation,omitempty"`
	ReviewedTranslation string `json:"reviewed_translation,omitempty"`
	FinalText           string `json:"final_text,omitempty"`
}

// Snapshot is the diagnostic state attached to a PipelineError.
type Snapshot struct {
	EntryCount int             `json:"entry_count"`
	Stage      string          `json:"stage"`
	Error      string          `json:"error"`
	Entries    []EntrySnapshot `json:"entries"`
}

// PipelineError is the distinguished condition raised when a stage fails
// hard. Callers must not treat it like "some entries failed": the whole
// unit of work was aborted and nothing from it was produced.
type PipelineError struct {
	Stage    string
	Err      error
	Snapshot Snapshot
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("agent pipeline failed at %s stage: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Pipeline coordinates the three stages over one unit of work.
type Pipeline struct {
	translator Translator
	reviewer   Reviewer
	gate       Gate
	log        *zap.Logger
}

// New creates a Pipeline. logger may be nil.
func New(translator Translator, reviewer Reviewer, gate Gate, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		translator: translator,
		reviewer:   reviewer,
		gate:       gate,
		log:        logger,
	}
}

// Run executes the full pipeline for one unit of work. Each input entry
// reaches exactly one terminal outcome: a TranslationResult, or the
// summary's Failed bucket for entries no stage could translate. A stage
// hard failure aborts the whole unit with a *PipelineError; no results
// are produced and later stages never run.
func (p *Pipeline) Run(ctx context.Context, entries []internal.TranslationEntry) ([]internal.TranslationResult, internal.RunSummary, error) {
	var summary internal.RunSummary
	if len(entries) == 0 {
		return nil, summary, nil
	}

	p.log.Info("starting agent pipeline", zap.Int("entries", len(entries)))

	work := make([]*Entry, len(entries))
	for i, e := range entries {
		work[i] = &Entry{TranslationEntry: e}
	}

	p.log.Info("phase 1: translation")
	if err := p.translator.Translate(ctx, work); err != nil {
		return nil, summary, p.abort("translator", work, err)
	}

	p.log.Info("phase 2: regional review")
	if err := p.reviewer.Review(ctx, work); err != nil {
		return nil, summary, p.abort("reviewer", work, err)
	}

	p.log.Info("phase 3: quality evaluation")
	results := make([]internal.TranslationResult, 0, len(work))
	for _, e := range work {
		if e.FinalText == "" && e.SourceText != "" {
			// no stage produced output for this entry; it stays
			// untranslated and will be picked up by the next run
			summary.Failed++
			p.log.Error("entry failed in pipeline, dropping", zap.String("source", e.SourceText))
			continue
		}
		result := p.gate.Gate(e.SourceText, e.FinalText)
		if result.NeedsHumanReview {
			summary.NeedsReview++
		} else {
			summary.Translated++
		}
		results = append(results, result)
	}

	p.log.Info("pipeline complete",
		zap.Int("auto_accepted", summary.Translated),
		zap.Int("needs_review", summary.NeedsReview),
		zap.Int("failed", summary.Failed),
	)
	return results, summary, nil
}

// abort captures the diagnostic snapshot and wraps the stage error.
// There is no automatic fallback from here; the run stops for a human.
func (p *Pipeline) abort(stage string, work []*Entry, err error) error {
	snap := Snapshot{
		EntryCount: len(work),
		Stage:      stage,
		Error:      err.Error(),
		Entries:    make([]EntrySnapshot, len(work)),
	}
	for i, e := range work {
		snap.Entries[i] = EntrySnapshot{
			SourceText:          e.SourceText,
			RawTranslation:      e.RawTranslation,
			ReviewedTranslation: e.ReviewedTranslation,
			FinalText:           e.FinalText,
		}
	}

	if data, jerr := json.Marshal(snap); jerr == nil {
		p.log.Error("pipeline failed, state saved for inspection",
			zap.String("stage", stage),
			zap.ByteString("snapshot", truncateBytes(data, 500)),
			zap.Error(err),
		)
	}

	return &PipelineError{Stage: stage, Err: err, Snapshot: snap}
}

func truncateBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return append(b[:n:n], []byte("...")...)
}
