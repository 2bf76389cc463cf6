// Package analyzer classifies an intern's reply as needing a human, an
// automatic follow-up, or nothing at all.
package analyzer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"careerprep/pkg/constants"
)

// Sentiment of a reply
type Sentiment string

const (
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Complexity of a reply
type Complexity string

const (
	ComplexityHigh Complexity = "high"
	ComplexityLow  Complexity = "low"
)

const (
	ReasonNeedsHelp = "Contains keywords indicating intern needs help"
	ReasonComplex   = "Complex response that may need human attention"
)

// Analysis is the result of classifying a reply
type Analysis struct {
	NeedsEscalation  bool       `json:"needs_escalation"`
	EscalationReason string     `json:"escalation_reason,omitempty"`
	Rule             string     `json:"rule,omitempty"`
	IsQuestion       bool       `json:"is_question"`
	NeedsFollowup    bool       `json:"needs_followup"`
	Sentiment        Sentiment  `json:"sentiment"`
	Complexity       Complexity `json:"complexity"`
	Keywords         []string   `json:"keywords,omitempty"`
}

// features are the facts about a reply every rule is evaluated against
type features struct {
	lower     string
	length    int
	sentences int
	keywords  []string
}

// rule escalates a reply when match holds. Rules are tried in order and the
// first match wins.
type rule struct {
	name   string
	match  func(f features) bool
	reason string
}

var (
	escalationKeywords = []string{
		"stuck", "help", "confused", "urgent",
		"problem", "issue", "error", "can't",
		"cannot", "unable", "difficulty", "struggling",
		"lost",
	}

	questionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\?`),
		regexp.MustCompile(`how do i`),
		regexp.MustCompile(`what should`),
		regexp.MustCompile(`(can|could|would) you`),
		regexp.MustCompile(`when should`),
		regexp.MustCompile(`where can`),
	}

	sentenceBreak = regexp.MustCompile(`[.!?]+`)

	escalationRules = []rule{
		{
			name:   "help_keywords",
			match:  func(f features) bool { return len(f.keywords) > 0 },
			reason: ReasonNeedsHelp,
		},
		{
			name: "complex_reply",
			match: func(f features) bool {
				return f.length > constants.ComplexResponseLength && f.sentences > constants.ComplexResponseSentences
			},
			reason: ReasonComplex,
		},
	}
)

// Analyze classifies a reply. Length is measured in characters, not bytes.
// Sentences are counted by splitting on runs of terminal punctuation, so a
// trailing period yields an empty final segment that still counts.
func Analyze(content string) Analysis {
	f := extract(content)

	result := Analysis{
		Sentiment:  SentimentNeutral,
		Complexity: ComplexityLow,
		Keywords:   f.keywords,
	}

	for _, r := range escalationRules {
		if r.match(f) {
			result.NeedsEscalation = true
			result.EscalationReason = r.reason
			result.Rule = r.name
			break
		}
	}

	if !result.NeedsEscalation {
		result.IsQuestion = isQuestion(f.lower)
	}

	result.NeedsFollowup = result.IsQuestion || f.length > constants.FollowupResponseLength

	if len(f.keywords) > 0 {
		result.Sentiment = SentimentNegative
	}
	if f.length > constants.ComplexResponseLength {
		result.Complexity = ComplexityHigh
	}

	return result
}

func extract(content string) features {
	lower := strings.ToLower(content)

	var found []string
	for _, keyword := range escalationKeywords {
		if strings.Contains(lower, keyword) {
			found = append(found, keyword)
		}
	}

	return features{
		lower:     lower,
		length:    utf8.RuneCountInString(content),
		sentences: len(sentenceBreak.Split(content, -1)),
		keywords:  found,
	}
}

func isQuestion(lower string) bool {
	for _, pattern := range questionPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}
