// Package validator checks that translated text is actually written in the
// job's target language and annotates quality results that are not.
package validator

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"

	"github.com/valpere/hubtran/internal"
)

// minValidationLength is the minimum rune count required to attempt language
// detection. Shorter texts produce unreliable results and pass unvalidated.
const minValidationLength = 20

// Validator checks translation results against an expected target language.
// Building the underlying language model is expensive; construct once and
// reuse across a run.
type Validator struct {
	det  lingua.LanguageDetector
	lang string
}

// New creates a Validator for the given ISO 639-1 target language code.
// An empty code disables validation.
func New(targetLang string) *Validator {
	det := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Validator{det: det, lang: strings.ToLower(targetLang)}
}

// Check returns a human-readable reason when translatedText does not appear
// to be written in the target language, and ok=false. Texts too short or too
// ambiguous to classify pass.
func (v *Validator) Check(translatedText string) (string, bool) {
	if v.lang == "" {
		return "", true
	}

	text := strings.TrimSpace(translatedText)
	if text == "" {
		return "", true
	}

	// Detector is unreliable for very short texts; skip validation.
	if len([]rune(text)) < minValidationLength {
		return "", true
	}

	lang, ok := v.det.DetectLanguageOf(text)
	if !ok {
		return "", true
	}

	detected := strings.ToLower(lang.IsoCode639_1().String())
	if detected != v.lang {
		return fmt.Sprintf("Detected language %q instead of %q", detected, v.lang), false
	}

	return "", true
}

// Annotate runs Check over results and records the outcome on each failing
// result: the reason joins ReviewReasons and CheckNotes gains a language
// entry. The score and the review flag are left alone; whether a result
// needs human review is decided by the quality threshold only.
func (v *Validator) Annotate(results []internal.TranslationResult) {
	for i := range results {
		reason, ok := v.Check(results[i].TranslatedText)
		if ok {
			continue
		}
		results[i].ReviewReasons = append(results[i].ReviewReasons, reason)
		if results[i].CheckNotes == nil {
			results[i].CheckNotes = make(map[string]string, 1)
		}
		results[i].CheckNotes["language"] = reason
	}
}
