// Package internal holds the data model shared by the orchestrator, the
// agent pipeline, the translation backends and the translation memory.
package internal

// Occurrence is one place in the source tree where an entry's text appears.
type Occurrence struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// EntryContext carries the positional and usage context an entry was
// discovered with. It is handed to backends verbatim so the model can use
// it; nothing in the pipeline interprets it.
type EntryContext struct {
	Occurrences       []Occurrence `json:"occurrences,omitempty"`
	Comment           string       `json:"comment,omitempty"`
	TranslatorComment string       `json:"translator_comment,omitempty"`
	Flags             []string     `json:"flags,omitempty"`
}

// TranslationEntry is one source string awaiting translation. Immutable
// after creation; pipeline stages attach their outputs to their own
// wrapper instead of mutating it.
type TranslationEntry struct {
	SourceText string       `json:"source_text"`
	Context    EntryContext `json:"context,omitempty"`
}

// Translation is the unit a backend or the orchestrator emits: a source
// string paired with its translated text.
type Translation struct {
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
}

// TranslationResult is the terminal artifact of the agent pipeline for a
// single entry. Created once at the quality gate and never mutated.
type TranslationResult struct {
	SourceText       string            `json:"source_text"`
	TranslatedText   string            `json:"translated_text"`
	QualityScore     float64           `json:"quality_score"`
	NeedsHumanReview bool              `json:"needs_human_review"`
	ReviewReasons    []string          `json:"review_reasons,omitempty"`
	CheckNotes       map[string]string `json:"check_notes,omitempty"`
}

// RunSummary accounts for the fate of every entry that entered a run.
// Translated + NeedsReview + Failed equals the number of processed
// entries, so silent data loss is structurally impossible; an interrupted
// run leaves its unprocessed remainder for the next run.
type RunSummary struct {
	Translated       int  `json:"translated"`
	NeedsReview      int  `json:"needs_review"`
	Failed           int  `json:"failed"`
	BatchesCompleted int  `json:"batches_completed"`
	Interrupted      bool `json:"interrupted,omitempty"`
}

// RecountResolved repartitions the summary's resolved entries by the
// review flag on their terminal results, so every result lands in exactly
// one of Translated or NeedsReview. Failed is left alone.
func (s *RunSummary) RecountResolved(results []TranslationResult) {
	s.Translated = 0
	s.NeedsReview = 0
	for _, r := range results {
		if r.NeedsHumanReview {
			s.NeedsReview++
		} else {
			s.Translated++
		}
	}
}

// ProgressFunc is invoked after each resolved batch with the number of
// entries translated so far and the run total.
type ProgressFunc func(translated, total int)
