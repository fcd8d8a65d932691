package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/hubtran/internal"
	"github.com/valpere/hubtran/internal/orchestrator"
	"github.com/valpere/hubtran/internal/quality"
)

type mockStage struct {
	translateFunc func(ctx context.Context, entries []*Entry) error
	reviewFunc    func(ctx context.Context, entries []*Entry) error
	calls         atomic.Int32
}

func (m *mockStage) Translate(ctx context.Context, entries []*Entry) error {
	m.calls.Add(1)
	if m.translateFunc != nil {
		return m.translateFunc(ctx, entries)
	}
	for _, e := range entries {
		e.RawTranslation = "translated " + e.SourceText
		e.FinalText = e.RawTranslation
	}
	return nil
}

func (m *mockStage) Review(ctx context.Context, entries []*Entry) error {
	m.calls.Add(1)
	if m.reviewFunc != nil {
		return m.reviewFunc(ctx, entries)
	}
	for _, e := range entries {
		e.ReviewedTranslation = e.RawTranslation
		e.FinalText = e.ReviewedTranslation
	}
	return nil
}

type mockGate struct {
	gateFunc func(source, translation string) internal.TranslationResult
	calls    atomic.Int32
}

func (m *mockGate) Gate(source, translation string) internal.TranslationResult {
	m.calls.Add(1)
	if m.gateFunc != nil {
		return m.gateFunc(source, translation)
	}
	return internal.TranslationResult{SourceText: source, TranslatedText: translation, QualityScore: 1.0}
}

func pipelineEntries(sources ...string) []internal.TranslationEntry {
	entries := make([]internal.TranslationEntry, len(sources))
	for i, s := range sources {
		entries[i] = internal.TranslationEntry{SourceText: s}
	}
	return entries
}

func TestPipeline_AllStagesRun(t *testing.T) {
	translator := &mockStage{}
	reviewer := &mockStage{}
	gate := &mockGate{}
	p := New(translator, reviewer, gate, nil)

	results, summary, err := p.Run(context.Background(), pipelineEntries("one", "two"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if translator.calls.Load() != 1 || reviewer.calls.Load() != 1 {
		t.Error("each stage must run exactly once")
	}
	if gate.calls.Load() != 2 {
		t.Errorf("gate must run once per entry, got %d", gate.calls.Load())
	}
	if summary.Translated != 2 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestPipeline_TranslatorFailureAbortsEverything(t *testing.T) {
	translator := &mockStage{
		translateFunc: func(ctx context.Context, entries []*Entry) error {
			return errors.New("backend unreachable")
		},
	}
	reviewer := &mockStage{}
	gate := &mockGate{}
	p := New(translator, reviewer, gate, nil)

	results, _, err := p.Run(context.Background(), pipelineEntries("one", "two"))

	if results != nil {
		t.Error("an aborted pipeline must produce no results")
	}
	var perr *PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PipelineError, got %v", err)
	}
	if perr.Stage != "translator" {
		t.Errorf("expected translator stage, got %q", perr.Stage)
	}
	if reviewer.calls.Load() != 0 {
		t.Error("reviewer must not run after an aborted translator stage")
	}
	if gate.calls.Load() != 0 {
		t.Error("gate must not run after an abort")
	}
}

func TestPipeline_ReviewerFailureCapturesSnapshot(t *testing.T) {
	translator := &mockStage{}
	reviewer := &mockStage{
		reviewFunc: func(ctx context.Context, entries []*Entry) error {
			return errors.New("review model misbehaved")
		},
	}
	gate := &mockGate{}
	p := New(translator, reviewer, gate, nil)

	_, _, err := p.Run(context.Background(), pipelineEntries("one"))

	var perr *PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PipelineError, got %v", err)
	}
	if perr.Stage != "reviewer" {
		t.Errorf("expected reviewer stage, got %q", perr.Stage)
	}
	snap := perr.Snapshot
	if snap.EntryCount != 1 || len(snap.Entries) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	// The snapshot must carry the intermediate state from the stage that
	// did complete.
	if snap.Entries[0].RawTranslation != "translated one" {
		t.Errorf("snapshot missing translator output: %+v", snap.Entries[0])
	}
	if gate.calls.Load() != 0 {
		t.Error("gate must not run after an abort")
	}
}

func TestPipeline_UntranslatedEntryCountedFailed(t *testing.T) {
	translator := &mockStage{
		translateFunc: func(ctx context.Context, entries []*Entry) error {
			// second entry never gets a translation: per-entry outcome,
			// not a stage failure
			entries[0].RawTranslation = "translated one"
			entries[0].FinalText = entries[0].RawTranslation
			return nil
		},
	}
	reviewer := &mockStage{
		reviewFunc: func(ctx context.Context, entries []*Entry) error {
			for _, e := range entries {
				e.ReviewedTranslation = e.RawTranslation
				e.FinalText = e.ReviewedTranslation
			}
			return nil
		},
	}
	gate := &mockGate{}
	p := New(translator, reviewer, gate, nil)

	results, summary, err := p.Run(context.Background(), pipelineEntries("one", "two"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if summary.Failed != 1 || summary.Translated != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if gate.calls.Load() != 1 {
		t.Errorf("the failed entry must not be gated, got %d gate calls", gate.calls.Load())
	}
}

func TestPipeline_ReviewRoutingFollowsGate(t *testing.T) {
	translator := &mockStage{}
	reviewer := &mockStage{}
	gate := &mockGate{
		gateFunc: func(source, translation string) internal.TranslationResult {
			needs := source == "bad"
			return internal.TranslationResult{
				SourceText:       source,
				TranslatedText:   translation,
				QualityScore:     0.5,
				NeedsHumanReview: needs,
			}
		},
	}
	p := New(translator, reviewer, gate, nil)

	_, summary, err := p.Run(context.Background(), pipelineEntries("good", "bad"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Translated != 1 || summary.NeedsReview != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestPipeline_EndToEndWithQualityEngine(t *testing.T) {
	translator := &mockStage{
		translateFunc: func(ctx context.Context, entries []*Entry) error {
			for _, e := range entries {
				// drop the placeholder so the gate flags it
				e.RawTranslation = "переклад без заповнювача"
				e.FinalText = e.RawTranslation
			}
			return nil
		},
	}
	reviewer := &mockStage{}
	p := New(translator, reviewer, quality.New(0.8), nil)

	results, summary, err := p.Run(context.Background(), pipelineEntries("Hello {name}, welcome"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].NeedsHumanReview {
		t.Error("placeholder loss must route to human review")
	}
	if summary.NeedsReview != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

type stageBackend struct {
	batchFunc    func(ctx context.Context, entries []internal.TranslationEntry) ([]internal.Translation, error)
	singleFunc   func(ctx context.Context, entry internal.TranslationEntry) (string, error)
	completeFunc func(ctx context.Context, system, prompt string) (string, error)

	batchCalls    atomic.Int32
	singleCalls   atomic.Int32
	completeCalls atomic.Int32
}

func (s *stageBackend) Name() string { return "stage-mock" }

func (s *stageBackend) TranslateBatch(ctx context.Context, entries []internal.TranslationEntry) ([]internal.Translation, error) {
	s.batchCalls.Add(1)
	if s.batchFunc != nil {
		return s.batchFunc(ctx, entries)
	}
	out := make([]internal.Translation, len(entries))
	for i, e := range entries {
		out[i] = internal.Translation{SourceText: e.SourceText, TranslatedText: "translated " + e.SourceText}
	}
	return out, nil
}

func (s *stageBackend) TranslateOne(ctx context.Context, entry internal.TranslationEntry) (string, error) {
	s.singleCalls.Add(1)
	if s.singleFunc != nil {
		return s.singleFunc(ctx, entry)
	}
	return "translated " + entry.SourceText, nil
}

func (s *stageBackend) Complete(ctx context.Context, system, prompt string) (string, error) {
	s.completeCalls.Add(1)
	if s.completeFunc != nil {
		return s.completeFunc(ctx, system, prompt)
	}
	return "[]", nil
}

func noSleepConfig() orchestrator.Config {
	return orchestrator.Config{MaxBatchRetries: 2, MaxSingleRetries: 2, RetryWait: time.Nanosecond}
}

func TestTranslatorStage_BatchFillsEntries(t *testing.T) {
	b := &stageBackend{}
	stage := NewTranslatorStage(b, noSleepConfig(), nil)
	stage.sleep = func(time.Duration) {}

	work := []*Entry{
		{TranslationEntry: internal.TranslationEntry{SourceText: "one"}},
		{TranslationEntry: internal.TranslationEntry{SourceText: "two"}},
	}
	if err := stage.Translate(context.Background(), work); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range work {
		if e.RawTranslation == "" || e.FinalText != e.RawTranslation {
			t.Errorf("entry not filled: %+v", e)
		}
	}
	if b.singleCalls.Load() != 0 {
		t.Error("no fallback expected on batch success")
	}
}

func TestTranslatorStage_FallbackLeavesFailedEmpty(t *testing.T) {
	b := &stageBackend{
		batchFunc: func(context.Context, []internal.TranslationEntry) ([]internal.Translation, error) {
			return nil, errors.New("batch down")
		},
		singleFunc: func(_ context.Context, entry internal.TranslationEntry) (string, error) {
			if entry.SourceText == "two" {
				return "", errors.New("still down")
			}
			return "translated " + entry.SourceText, nil
		},
	}
	stage := NewTranslatorStage(b, noSleepConfig(), nil)
	stage.sleep = func(time.Duration) {}

	work := []*Entry{
		{TranslationEntry: internal.TranslationEntry{SourceText: "one"}},
		{TranslationEntry: internal.TranslationEntry{SourceText: "two"}},
	}
	if err := stage.Translate(context.Background(), work); err != nil {
		t.Fatalf("per-entry failures must not fail the stage: %v", err)
	}
	if work[0].FinalText != "translated one" {
		t.Errorf("surviving entry not filled: %+v", work[0])
	}
	if work[1].FinalText != "" {
		t.Errorf("failed entry must stay empty, got %q", work[1].FinalText)
	}
	if b.batchCalls.Load() != 2 {
		t.Errorf("expected 2 batch attempts, got %d", b.batchCalls.Load())
	}
}

func TestReviewerStage_EmptyProfilePassesThrough(t *testing.T) {
	b := &stageBackend{}
	stage := NewReviewerStage(b, Profile{}, noSleepConfig(), nil)
	stage.sleep = func(time.Duration) {}

	work := []*Entry{{RawTranslation: "щось перекладене"}}
	if err := stage.Review(context.Background(), work); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if work[0].FinalText != "щось перекладене" {
		t.Errorf("pass-through broken: %+v", work[0])
	}
	if b.completeCalls.Load() != 0 {
		t.Error("empty profile must not call the model")
	}
}

func TestReviewerStage_SynonymRules(t *testing.T) {
	profile := Profile{
		Region:            "Ukraine",
		PreferredSynonyms: map[string]string{"мапа": "карта"},
	}
	// nil completer: rules only
	stage := NewReviewerStage(nil, profile, noSleepConfig(), nil)
	stage.sleep = func(time.Duration) {}

	work := []*Entry{{RawTranslation: "відкрийте Мапа сайту"}}
	if err := stage.Review(context.Background(), work); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(work[0].FinalText, "карта") {
		t.Errorf("synonym rule not applied: %q", work[0].FinalText)
	}
}

func TestReviewerStage_LLMOverride(t *testing.T) {
	b := &stageBackend{
		completeFunc: func(ctx context.Context, system, prompt string) (string, error) {
			return `["виправлений переклад"]`, nil
		},
	}
	profile := Profile{Region: "Ukraine", FormalityLevel: "formal"}
	stage := NewReviewerStage(b, profile, noSleepConfig(), nil)
	stage.sleep = func(time.Duration) {}

	work := []*Entry{{
		TranslationEntry: internal.TranslationEntry{SourceText: "  original  "},
		RawTranslation:   "  сирий переклад  ",
	}}
	if err := stage.Review(context.Background(), work); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if work[0].FinalText != "  виправлений переклад  " {
		t.Errorf("expected whitespace-preserving override, got %q", work[0].FinalText)
	}
}

func TestReviewerStage_GracefulDegradation(t *testing.T) {
	b := &stageBackend{
		completeFunc: func(context.Context, string, string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	profile := Profile{
		Region:            "Ukraine",
		PreferredSynonyms: map[string]string{"мапа": "карта"},
	}
	stage := NewReviewerStage(b, profile, noSleepConfig(), nil)
	stage.sleep = func(time.Duration) {}

	work := []*Entry{{RawTranslation: "мапа проїзду"}}
	err := stage.Review(context.Background(), work)
	if err != nil {
		t.Fatalf("exhausted LLM retries must not fail the stage: %v", err)
	}
	if b.completeCalls.Load() != 2 {
		t.Errorf("expected 2 completion attempts, got %d", b.completeCalls.Load())
	}
	if !strings.Contains(work[0].FinalText, "карта") {
		t.Errorf("rules-only result must be kept, got %q", work[0].FinalText)
	}
}

func TestReviewerStage_LengthMismatchDegrades(t *testing.T) {
	b := &stageBackend{
		completeFunc: func(context.Context, string, string) (string, error) {
			return `["one", "two", "three"]`, nil
		},
	}
	profile := Profile{Region: "Ukraine", FormalityLevel: "formal"}
	stage := NewReviewerStage(b, profile, noSleepConfig(), nil)
	stage.sleep = func(time.Duration) {}

	work := []*Entry{{RawTranslation: "переклад"}}
	if err := stage.Review(context.Background(), work); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if work[0].FinalText != "переклад" {
		t.Errorf("mismatched review must keep the original, got %q", work[0].FinalText)
	}
}
