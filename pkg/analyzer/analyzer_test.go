package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_KeywordEscalation(t *testing.T) {
	result := Analyze("I'm stuck on this task")

	assert.True(t, result.NeedsEscalation)
	assert.Contains(t, result.EscalationReason, "needs help")
	assert.Equal(t, "help_keywords", result.Rule)
	assert.Equal(t, SentimentNegative, result.Sentiment)
	assert.Equal(t, []string{"stuck"}, result.Keywords)
}

func TestAnalyze_KeywordsAreCaseInsensitiveSubstrings(t *testing.T) {
	result := Analyze("This is so CONFUSING, I Cannot find the repo")

	assert.True(t, result.NeedsEscalation)
	assert.ElementsMatch(t, []string{"cannot"}, result.Keywords)

	// "helpful" contains "help"
	assert.True(t, Analyze("That was helpful").NeedsEscalation)
}

func TestAnalyze_Question(t *testing.T) {
	result := Analyze("What should I prioritize this week?")

	assert.False(t, result.NeedsEscalation)
	assert.True(t, result.IsQuestion)
	assert.True(t, result.NeedsFollowup)
	assert.Equal(t, SentimentNeutral, result.Sentiment)
	assert.Equal(t, ComplexityLow, result.Complexity)
}

func TestAnalyze_QuestionPatternsWithoutQuestionMark(t *testing.T) {
	tests := []string{
		"How do I submit the report",
		"what should come first",
		"Could you send the slides",
		"Would you review my draft",
		"When should the memo go out",
		"Where can I find the template",
	}

	for _, content := range tests {
		t.Run(content, func(t *testing.T) {
			result := Analyze(content)
			assert.True(t, result.IsQuestion)
			assert.True(t, result.NeedsFollowup)
		})
	}
}

func TestAnalyze_ShortAcknowledgement(t *testing.T) {
	result := Analyze("Thanks, got it!")

	assert.False(t, result.NeedsEscalation)
	assert.False(t, result.IsQuestion)
	assert.False(t, result.NeedsFollowup)
	assert.Empty(t, result.EscalationReason)
}

func TestAnalyze_LongStatementNeedsFollowup(t *testing.T) {
	content := "I finished the market research summary and uploaded it to the shared drive folder."
	result := Analyze(content)

	assert.False(t, result.NeedsEscalation)
	assert.False(t, result.IsQuestion)
	assert.True(t, result.NeedsFollowup)
}

func TestAnalyze_ComplexReply(t *testing.T) {
	sentence := "I reviewed the quarterly figures and updated the summary table for the team meeting"
	content := strings.Join([]string{sentence, sentence, sentence}, ". ")
	assert.Greater(t, len(content), 200)

	result := Analyze(content)

	assert.True(t, result.NeedsEscalation)
	assert.Equal(t, ReasonComplex, result.EscalationReason)
	assert.Equal(t, SentimentNeutral, result.Sentiment)
	assert.Equal(t, ComplexityHigh, result.Complexity)
}

func TestAnalyze_LongSingleSentenceIsNotComplex(t *testing.T) {
	content := strings.Repeat("word ", 50)

	result := Analyze(content)

	assert.False(t, result.NeedsEscalation)
	assert.Equal(t, ComplexityHigh, result.Complexity)
	assert.True(t, result.NeedsFollowup)
}

func TestAnalyze_TrailingPunctuationCountsAsSegment(t *testing.T) {
	// two sentences plus the empty segment after the final period
	content := strings.Repeat("a", 150) + ". " + strings.Repeat("b", 60) + "."

	result := Analyze(content)

	assert.True(t, result.NeedsEscalation)
	assert.Equal(t, ReasonComplex, result.EscalationReason)
}

func TestAnalyze_KeywordRuleWinsOverComplexity(t *testing.T) {
	sentence := "There is an error in the pipeline output and I am not sure how the numbers were derived"
	content := strings.Join([]string{sentence, sentence, sentence}, ". ")

	result := Analyze(content)

	assert.Equal(t, ReasonNeedsHelp, result.EscalationReason)
	assert.Equal(t, ComplexityHigh, result.Complexity)
}

func TestAnalyze_LengthCountsCharacters(t *testing.T) {
	// 40 multi-byte characters stay under the follow-up threshold
	result := Analyze(strings.Repeat("é", 40))

	assert.False(t, result.NeedsFollowup)
}

func TestAnalyze_LengthCountsEmojiOnce(t *testing.T) {
	// 30 emoji are 60 UTF-16 units but 30 characters
	result := Analyze(strings.Repeat("\U0001F642", 30))
	assert.False(t, result.NeedsFollowup)

	result = Analyze(strings.Repeat("\U0001F642", 51))
	assert.True(t, result.NeedsFollowup)
}

func TestAnalyze_EmptyContent(t *testing.T) {
	result := Analyze("")

	assert.False(t, result.NeedsEscalation)
	assert.False(t, result.IsQuestion)
	assert.False(t, result.NeedsFollowup)
	assert.Equal(t, ComplexityLow, result.Complexity)
}
