package scoring

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fatih/camelcase"

	"github.com/openkraft/keeper/internal/domain"
)

// minSubstantiveLength is the rune count below which a task is always trivial.
const minSubstantiveLength = 20

// charsPerToken approximates tokenizer output for English prose and code.
const charsPerToken = 4

var greetingPattern = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks|thank you|thx|ok|okay|yes|yep|sure|cool|great|got it|bye|good (morning|afternoon|evening|night))\b`)

// identifierPattern finds camelCase and PascalCase identifiers.
var identifierPattern = regexp.MustCompile(`[A-Za-z0-9]*[a-z][A-Z][A-Za-z0-9]*`)

// signal is one independent, additive contribution to the complexity score.
type signal struct {
	name    string
	pattern *regexp.Regexp
	points  int
}

var signals = []signal{
	{"analytical", regexp.MustCompile(`(?i)\b(analy[sz]e|analysis|compare|comparison|evaluate|assess|review|critique|trade-?offs?|pros and cons)\b`), 2},
	{"causal", regexp.MustCompile(`(?i)\b(why|because|cause[sd]?|reason|consequence|therefore|leads? to|root cause)\b`), 1},
	{"coding", regexp.MustCompile(`(?i)\b(code|function|method|class|implement|refactor|debug|bug|compile|script|api|endpoint|regex|typescript|golang|python|sql)\b`), 2},
	{"security", regexp.MustCompile(`(?i)\b(exploit|exploitation|vulnerabilit(y|ies)|payload|injection|xss|csrf|ssrf|rce|idor|privilege escalation|bypass|cve-?\d*|poc)\b`), 6},
	{"math", regexp.MustCompile(`(?i)\b(algorithm|complexity|proof|prove|equation|derivative|integral|optimi[sz]e|probability|calculate|big-?o)\b`), 2},
}

// tokenThresholds are crossed in increasing order; each crossing adds
// tokenStepPoints.
var tokenThresholds = []int{500, 2000, 8000}

const tokenStepPoints = 2

// tierFloors maps a score to a tier: the highest floor not above the score wins.
var tierFloors = []struct {
	floor int
	tier  domain.Tier
}{
	{9, domain.TierMassive},
	{6, domain.TierComplex},
	{3, domain.TierModerate},
	{1, domain.TierSimple},
	{0, domain.TierTrivial},
}

// ClassifyInput classifies an untyped task payload. Anything that is not a
// string is treated as an empty task.
func ClassifyInput(v any) domain.Tier {
	s, ok := v.(string)
	if !ok {
		return domain.TierSimple
	}
	return ClassifyComplexity(s)
}

// ClassifyComplexity maps task text to a tier.
func ClassifyComplexity(task string) domain.Tier {
	if strings.TrimSpace(task) == "" {
		return domain.TierSimple
	}
	if utf8.RuneCountInString(task) < minSubstantiveLength || greetingPattern.MatchString(task) {
		return domain.TierTrivial
	}
	return TierForScore(ComplexityScore(task))
}

// ComplexityScore sums the signals that fire on task.
func ComplexityScore(task string) int {
	score := 0

	tokens := EstimateTokens(task)
	for _, threshold := range tokenThresholds {
		if tokens > threshold {
			score += tokenStepPoints
		}
	}

	text := withIdentifierWords(task)
	for _, s := range signals {
		if s.pattern.MatchString(text) {
			score += s.points
		}
	}

	return score
}

// withIdentifierWords appends the words of every identifier in task, so that
// "refactorUserService" also reads as "refactor User Service".
func withIdentifierWords(task string) string {
	ids := identifierPattern.FindAllString(task, -1)
	if len(ids) == 0 {
		return task
	}
	var b strings.Builder
	b.WriteString(task)
	for _, id := range ids {
		b.WriteByte(' ')
		b.WriteString(strings.Join(camelcase.Split(id), " "))
	}
	return b.String()
}

// TierForScore applies the inclusive tier thresholds.
func TierForScore(score int) domain.Tier {
	for _, f := range tierFloors {
		if score >= f.floor {
			return f.tier
		}
	}
	return domain.TierTrivial
}

// EstimateTokens is a character-based token estimate.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}
