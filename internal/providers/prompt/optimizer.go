package prompt

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"designer/internal/domain"
)

const (
	CompositionQualifier = "single centered composition"
	BackgroundQualifier  = "plain white background"
	ResolutionQualifier  = "high resolution"
)

// Optimizer rewrites a raw prompt into a generation-ready prompt. It never
// fails: implementations degrade to Fallback.
type Optimizer interface {
	Optimize(ctx context.Context, rawPrompt string, layout domain.Layout) domain.OptimizedPrompt
}

// Keyword sets cover the languages the configurator is used in. Matching runs
// on case-folded text.
var (
	backgroundPattern  = regexp.MustCompile(`(?i)(background|backdrop|fondo|fundo|arri[eè]re[- ]plan|sfondo|hintergrund|latar)`)
	compositionPattern = regexp.MustCompile(`(?i)(single|centered|centred|isolated|one subject|only one|[uú]nic[oa]|centrad[oa]|centralizad[oa]|aislad[oa]|un solo|una sola|isol[ée]|centr[ée]|sujet seul|einzeln|zentriert|tunggal)`)
	resolutionPattern  = regexp.MustCompile(`(?i)(high[- ]?res(olution)?|hi[- ]res|\b[48]k\b|uhd|ultra[- ]hd|alta resoluci[oó]n|alta resolu[cç][aã]o|haute r[ée]solution|alta risoluzione|hohe aufl[öo]sung|resolusi tinggi)`)
)

type detection struct {
	background  bool
	composition bool
	resolution  bool
}

func detect(text string) detection {
	folded := cases.Fold().String(text)
	return detection{
		background:  backgroundPattern.MatchString(folded),
		composition: compositionPattern.MatchString(folded),
		resolution:  resolutionPattern.MatchString(folded),
	}
}

// Fallback derives the optimized prompt without any external call. Only
// qualifiers the prompt does not already mention are appended, so applying
// it to its own output is a no-op.
func Fallback(rawPrompt string) string {
	d := detect(rawPrompt)
	var missing []string
	if !d.composition {
		missing = append(missing, CompositionQualifier)
	}
	if !d.background {
		missing = append(missing, BackgroundQualifier)
	}
	if !d.resolution {
		missing = append(missing, ResolutionQualifier)
	}
	return appendQualifiers(rawPrompt, missing)
}

// ensureQualifiers adds the composition and resolution qualifiers when a
// model-produced prompt dropped them. The background choice is left to the model.
func ensureQualifiers(text string) string {
	d := detect(text)
	var missing []string
	if !d.composition {
		missing = append(missing, CompositionQualifier)
	}
	if !d.resolution {
		missing = append(missing, ResolutionQualifier)
	}
	return appendQualifiers(text, missing)
}

func appendQualifiers(text string, qualifiers []string) string {
	text = strings.TrimRightFunc(strings.TrimSpace(text), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})
	if len(qualifiers) == 0 {
		return text
	}
	suffix := strings.Join(qualifiers, ", ")
	if text == "" {
		return suffix
	}
	return text + ", " + suffix
}

// StaticOptimizer always uses the deterministic fallback. It backs
// environments without a text-generation credential.
type StaticOptimizer struct{}

func NewStaticOptimizer() *StaticOptimizer {
	return &StaticOptimizer{}
}

func (StaticOptimizer) Optimize(_ context.Context, rawPrompt string, _ domain.Layout) domain.OptimizedPrompt {
	return domain.OptimizedPrompt{Text: Fallback(rawPrompt), UsedFallback: true, FallbackReason: "static"}
}

var _ Optimizer = (*StaticOptimizer)(nil)
