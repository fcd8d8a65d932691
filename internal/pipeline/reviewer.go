package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/hubtran/internal/backend"
	"github.com/valpere/hubtran/internal/orchestrator"
)

// ForbiddenTerm is a term the regional profile bans, with the reason
// surfaced to the model.
type ForbiddenTerm struct {
	Term   string `json:"term"`
	Reason string `json:"reason,omitempty"`
}

// Profile describes a regional expert profile: who the translation is
// for and which terminology rules apply.
type Profile struct {
	Region            string            `json:"region"`
	FormalityLevel    string            `json:"formality_level,omitempty"`
	CulturalContext   string            `json:"cultural_context,omitempty"`
	ForbiddenTerms    []ForbiddenTerm   `json:"forbidden_terms,omitempty"`
	PreferredSynonyms map[string]string `json:"preferred_synonyms,omitempty"`
	IndustryJargon    map[string]string `json:"industry_jargon,omitempty"`
}

// IsZero reports whether the profile carries no usable context.
func (p Profile) IsZero() bool {
	return p.Region == "" && p.FormalityLevel == "" && p.CulturalContext == "" &&
		len(p.ForbiddenTerms) == 0 && len(p.PreferredSynonyms) == 0 && len(p.IndustryJargon) == 0
}

// ReviewerStage adjusts first-pass translations for a region: a
// deterministic synonym pass first, then one LLM call for cultural
// nuance. Unlike the pipeline as a whole this stage degrades gracefully:
// if the LLM call never succeeds, the rules-only result is kept.
type ReviewerStage struct {
	completer backend.Completer
	profile   Profile
	config    orchestrator.Config
	log       *zap.Logger

	synonyms []synonymRule
	sleep    func(time.Duration)
}

type synonymRule struct {
	pattern   *regexp.Regexp
	preferred string
}

// NewReviewerStage creates the stage. completer may be nil when the
// profile is empty (the stage then just passes translations through).
func NewReviewerStage(completer backend.Completer, profile Profile, config orchestrator.Config, logger *zap.Logger) *ReviewerStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ReviewerStage{
		completer: completer,
		profile:   profile,
		config:    config,
		log:       logger,
		sleep:     time.Sleep,
	}
	for original, preferred := range profile.PreferredSynonyms {
		r.synonyms = append(r.synonyms, synonymRule{
			pattern:   regexp.MustCompile(`(?i)` + regexp.QuoteMeta(original)),
			preferred: preferred,
		})
	}
	return r
}

// Review fills ReviewedTranslation and FinalText for every entry.
func (r *ReviewerStage) Review(ctx context.Context, entries []*Entry) error {
	if r.profile.IsZero() {
		r.log.Info("no regional profile configured, skipping review")
		for _, e := range entries {
			e.ReviewedTranslation = e.RawTranslation
			e.FinalText = e.ReviewedTranslation
		}
		return nil
	}

	r.log.Info("reviewing translations",
		zap.Int("entries", len(entries)),
		zap.String("region", r.profile.Region),
	)

	// First pass: deterministic terminology rules, no LLM.
	for _, e := range entries {
		e.ReviewedTranslation = r.applyLocalRules(e.RawTranslation)
	}

	if r.completer == nil {
		r.log.Warn("no completer available, using local rules only")
		for _, e := range entries {
			e.FinalText = e.ReviewedTranslation
		}
		return nil
	}

	// Second pass: one LLM call for cultural nuance, bounded retries.
	prompt := r.buildReviewPrompt(entries)

	maxRetries := r.config.MaxBatchRetries
	if maxRetries <= 0 {
		maxRetries = orchestrator.DefaultMaxBatchRetries
	}
	wait := r.config.RetryWait
	if wait <= 0 {
		wait = orchestrator.DefaultRetryWait
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		raw, err := r.completer.Complete(ctx, reviewerSystemPrompt, prompt)
		if err == nil {
			var reviewed []string
			reviewed, err = backend.ParseBatchResponse(raw)
			if err == nil && len(reviewed) == len(entries) {
				for i, e := range entries {
					if reviewed[i] != "" {
						e.ReviewedTranslation = backend.PreserveWhitespace(e.SourceText, reviewed[i])
					}
					e.FinalText = e.ReviewedTranslation
				}
				r.log.Info("review complete", zap.Int("entries", len(entries)))
				return nil
			}
			if err == nil {
				err = fmt.Errorf("review length mismatch: want %d, got %d", len(entries), len(reviewed))
			}
		}
		r.log.Warn("review attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err),
		)
		if attempt < maxRetries {
			r.sleep(wait)
		}
	}

	// Graceful degradation: keep the deterministic-rules result.
	r.log.Warn("LLM review failed, using local rules only")
	for _, e := range entries {
		e.FinalText = e.ReviewedTranslation
	}
	return nil
}

func (r *ReviewerStage) applyLocalRules(text string) string {
	result := text
	for _, rule := range r.synonyms {
		result = rule.pattern.ReplaceAllString(result, rule.preferred)
	}
	return result
}

const reviewerSystemPrompt = "You are a regional language expert. Focus on cultural and regional appropriateness. Always respond with valid JSON."

func (r *ReviewerStage) buildReviewPrompt(entries []*Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a regional language expert for %s.\n", r.profile.Region)
	b.WriteString("Your task is to review translations and adjust them for regional appropriateness.\n\n")

	if r.profile.FormalityLevel != "" {
		fmt.Fprintf(&b, "**Formality Level:** %s\n", r.profile.FormalityLevel)
	}
	if r.profile.CulturalContext != "" {
		fmt.Fprintf(&b, "**Cultural Context:** %s\n", r.profile.CulturalContext)
	}

	if len(r.profile.ForbiddenTerms) > 0 {
		b.WriteString("\n**FORBIDDEN TERMS (must replace):**\n")
		for _, ft := range r.profile.ForbiddenTerms {
			reason := ft.Reason
			if reason == "" {
				reason = "Not appropriate for this region"
			}
			fmt.Fprintf(&b, "- '%s' - Reason: %s\n", ft.Term, reason)
		}
	}

	if len(r.profile.IndustryJargon) > 0 {
		b.WriteString("\n**Industry-Specific Terms:**\n")
		for eng, local := range r.profile.IndustryJargon {
			fmt.Fprintf(&b, "- %s -> %s\n", eng, local)
		}
	}

	type reviewItem struct {
		Source      string `json:"source"`
		Translation string `json:"translation"`
	}
	items := make([]reviewItem, len(entries))
	for i, e := range entries {
		items[i] = reviewItem{Source: e.SourceText, Translation: e.ReviewedTranslation}
	}
	data, _ := json.MarshalIndent(items, "", "  ")

	b.WriteString("\nReview these translations and adjust for regional/cultural appropriateness:\n")
	b.Write(data)
	b.WriteString("\n\nReturn ONLY a JSON array with the reviewed translations (same order).\n")
	b.WriteString("If no changes are needed, return the original translation.\n")
	b.WriteString("[\"reviewed text 1\", \"reviewed text 2\", ...]\n")
	return b.String()
}
