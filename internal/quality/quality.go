// Package quality scores a candidate translation against its source string
// along several independent dimensions and decides whether a human must
// review it.
//
// Each check returns a score in [0,1] and a list of reasons; the aggregate
// score is the minimum over all checks, so one failing dimension cannot be
// outvoted by the others. Evaluation is a pure function over two strings
// and never fails.
package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/valpere/hubtran/internal"
)

// DefaultThreshold is the quality score below which a translation is
// routed to human review.
const DefaultThreshold = 0.8

// Check penalty scores and cutoffs. These are tuning policy, not
// contracts; they match what years of review traffic settled on.
const (
	placeholderPenalty   = 0.3
	htmlTagPenalty       = 0.5
	lengthRatioPenalty   = 0.6
	identicalPenalty     = 0.95
	minLengthRatio       = 0.3
	maxLengthRatio       = 3.0
	identicalMinLen      = 20
	trustedSingleWordLen = 15
)

// placeholderPatterns are the placeholder grammars checked for integrity.
// Each pattern is compared as a set between source and translation.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\{\}`),                          // {}
	regexp.MustCompile(`#\{\}`),                         // #{}
	regexp.MustCompile(`\{[0-9]+\}`),                    // {0}, {1}
	regexp.MustCompile(`#\{[0-9]+\}`),                   // #{0}, #{1}
	regexp.MustCompile(`\{[a-zA-Z_][a-zA-Z0-9_]*\}`),    // {name}
	regexp.MustCompile(`%[sd]`),                         // %s, %d
	regexp.MustCompile(`%\([a-zA-Z_][a-zA-Z0-9_]*\)[sd]`), // %(name)s
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// technicalPatterns exempt identical source/translation pairs that are not
// really translatable text.
var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]{2,}$`),          // acronyms: API, URL, PDF
	regexp.MustCompile(`^[a-z]+_[a-z_]+$`),     // snake_case identifiers
	regexp.MustCompile(`^[a-z]+[A-Z][a-zA-Z]*$`), // camelCase identifiers
	regexp.MustCompile(`^\d+[\d\s,.]*$`),       // numbers
	regexp.MustCompile(`(?i)^https?://`),       // URLs
	regexp.MustCompile(`@.*\.`),                // emails
	regexp.MustCompile(`^\{.*\}$`),             // a bare placeholder
}

// cognateSuffixes mark Romance/English cognates that are frequently spelt
// identically in the target language.
var cognateSuffixes = []string{
	"tion", "sion",
	"al", "el",
	"ment",
	"ble",
	"ude",
	"ive",
	"ence", "ance",
	"ism",
	"ist",
	"or", "er",
}

// internationalTerms are common technical terms accepted untranslated.
var internationalTerms = map[string]struct{}{
	"email": {}, "e-mail": {}, "data": {}, "status": {}, "menu": {}, "internet": {},
	"software": {}, "hardware": {}, "online": {}, "offline": {}, "web": {}, "website": {},
	"login": {}, "logout": {}, "password": {}, "username": {}, "admin": {}, "user": {},
	"server": {}, "client": {}, "database": {}, "backup": {}, "cache": {}, "proxy": {},
	"api": {}, "url": {}, "html": {}, "css": {}, "json": {}, "xml": {}, "http": {}, "https": {},
	"pdf": {}, "csv": {}, "excel": {}, "word": {}, "powerpoint": {}, "default": {},
	"marketing": {}, "design": {}, "layout": {}, "click": {}, "link": {}, "download": {},
	"upload": {}, "dashboard": {}, "widget": {}, "template": {}, "plugin": {}, "script": {},
}

// Engine evaluates translation quality. Stateless apart from the
// configured threshold; safe for reuse.
type Engine struct {
	threshold float64
}

// New creates an Engine with the given review threshold. Thresholds
// outside (0,1] fall back to DefaultThreshold.
func New(threshold float64) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

// Threshold returns the configured review threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

type checkFunc func(source, translation string) (score float64, reasons []string)

type check struct {
	name string
	fn   checkFunc
}

// checks run in declaration order; reasons concatenate in this order.
var checks = []check{
	{"placeholders", checkPlaceholders},
	{"html_tags", checkHTMLTags},
	{"length_ratio", checkLengthRatio},
	{"empty", checkEmpty},
	{"untranslated", checkUntranslated},
}

// Evaluate scores translation against source. It returns the aggregate
// score (the minimum across all checks), the concatenated reasons, and a
// per-check note map for observability.
func (e *Engine) Evaluate(source, translation string) (float64, []string, map[string]string) {
	score := 1.0
	var reasons []string
	notes := make(map[string]string, len(checks))

	for _, c := range checks {
		s, rs := c.fn(source, translation)
		if s < score {
			score = s
		}
		reasons = append(reasons, rs...)
		notes[c.name] = fmt.Sprintf("score=%.2f", s)
	}

	return score, reasons, notes
}

// Gate evaluates translation against source and wraps the outcome in a
// terminal TranslationResult, setting NeedsHumanReview iff the aggregate
// score is below the threshold. The threshold predicate is the only thing
// that routes an entry to review.
func (e *Engine) Gate(source, translation string) internal.TranslationResult {
	score, reasons, notes := e.Evaluate(source, translation)
	return internal.TranslationResult{
		SourceText:       source,
		TranslatedText:   translation,
		QualityScore:     score,
		NeedsHumanReview: score < e.threshold,
		ReviewReasons:    reasons,
		CheckNotes:       notes,
	}
}

// checkPlaceholders verifies that source and translation contain the same
// set of placeholders for every known grammar, in either direction.
func checkPlaceholders(source, translation string) (float64, []string) {
	var reasons []string
	for _, pat := range placeholderPatterns {
		srcSet := matchSet(pat, source)
		trSet := matchSet(pat, translation)

		if missing := setDiff(srcSet, trSet); len(missing) > 0 {
			reasons = append(reasons, fmt.Sprintf("Missing placeholders: %s", strings.Join(missing, ", ")))
		}
		if extra := setDiff(trSet, srcSet); len(extra) > 0 {
			reasons = append(reasons, fmt.Sprintf("Extra placeholders: %s", strings.Join(extra, ", ")))
		}
	}
	if len(reasons) > 0 {
		return placeholderPenalty, reasons
	}
	return 1.0, nil
}

// checkHTMLTags compares the number of HTML tags. Tag identity and order
// are not checked, only count.
func checkHTMLTags(source, translation string) (float64, []string) {
	srcTags := htmlTagPattern.FindAllString(source, -1)
	trTags := htmlTagPattern.FindAllString(translation, -1)
	if len(srcTags) != len(trTags) {
		return htmlTagPenalty, []string{
			fmt.Sprintf("HTML tag count mismatch: source=%d, translation=%d", len(srcTags), len(trTags)),
		}
	}
	return 1.0, nil
}

// checkLengthRatio flags translations that shrank or grew implausibly.
// The bounds are generous: legitimate translations vary 0.5x-2.5x.
func checkLengthRatio(source, translation string) (float64, []string) {
	if source == "" || translation == "" {
		return 1.0, nil
	}
	ratio := float64(len(translation)) / float64(len(source))
	if ratio < minLengthRatio {
		return lengthRatioPenalty, []string{fmt.Sprintf("Translation too short: ratio=%.2f", ratio)}
	}
	if ratio > maxLengthRatio {
		return lengthRatioPenalty, []string{fmt.Sprintf("Translation too long: ratio=%.2f", ratio)}
	}
	return 1.0, nil
}

func checkEmpty(source, translation string) (float64, []string) {
	if source != "" && strings.TrimSpace(translation) == "" {
		return 0.0, []string{"Translation is empty"}
	}
	return 1.0, nil
}

// checkUntranslated detects a translation identical to its source. It is
// deliberately forgiving: after the exemption cascade (technical patterns,
// cognate suffixes, international vocabulary, short single words) an
// unexempted identical string still only takes a light penalty, because it
// already survived independent translation and review stages and is
// presumed intentional.
func checkUntranslated(source, translation string) (float64, []string) {
	if len(source) < identicalMinLen {
		return 1.0, nil
	}
	srcFolded := strings.ToLower(strings.TrimSpace(source))
	trFolded := strings.ToLower(strings.TrimSpace(translation))
	if srcFolded != trFolded {
		return 1.0, nil
	}

	trimmed := strings.TrimSpace(source)
	for _, pat := range technicalPatterns {
		if pat.MatchString(trimmed) {
			return 1.0, nil
		}
	}
	for _, suffix := range cognateSuffixes {
		if strings.HasSuffix(srcFolded, suffix) {
			return 1.0, nil
		}
	}
	if _, ok := internationalTerms[srcFolded]; ok {
		return 1.0, nil
	}
	if len(strings.Fields(trimmed)) == 1 && len(trimmed) < trustedSingleWordLen {
		return 1.0, nil
	}

	// Soft penalty without a reason: identical text that passed the
	// exemptions is usually intentional.
	return identicalPenalty, nil
}

func matchSet(pat *regexp.Regexp, text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, m := range pat.FindAllString(text, -1) {
		set[m] = struct{}{}
	}
	return set
}

// setDiff returns the members of a absent from b, sorted for stable
// reason messages.
func setDiff(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
