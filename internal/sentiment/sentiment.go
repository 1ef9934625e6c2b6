package sentiment

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/keywatch/keywatch/internal/llm"
)

// DefaultThreshold is the gate below which a match is skipped rather
// than answered. Kept configurable; see engagement.sentiment_threshold.
const DefaultThreshold = -0.7

const systemPrompt = `You score the sentiment of social media posts for a brand-engagement tool.
Score from -1.0 (hostile, angry, or a serious complaint) to 1.0 (enthusiastic praise). 0 is neutral.

Respond with ONLY this JSON:
{"score": <number between -1 and 1>}`

// Analyzer scores match content. It prefers the LLM and falls back to
// a deterministic lexical heuristic, so scoring never fails.
type Analyzer struct {
	provider llm.Provider
}

// New creates an Analyzer. provider may be nil; the lexical fallback
// then handles everything.
func New(provider llm.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Score returns a sentiment score in [-1, 1] for the given text.
func (a *Analyzer) Score(ctx context.Context, text string) float64 {
	if a.provider == nil {
		return lexicalScore(text)
	}

	response, err := a.provider.Complete(ctx, systemPrompt, truncate(text, 2000), 64)
	if err != nil {
		log.Printf("sentiment: llm scoring failed, using lexical fallback: %v", err)
		return lexicalScore(text)
	}

	parsed := llm.ParseJSONResponse(response)
	if parsed == nil {
		return lexicalScore(text)
	}
	score, ok := parsed["score"].(float64)
	if !ok {
		return lexicalScore(text)
	}
	return clamp(score)
}

var positiveWords = []string{
	"love", "great", "awesome", "excellent", "amazing", "recommend",
	"happy", "helpful", "best", "thanks", "thank you", "fantastic",
	"perfect", "impressed", "wonderful",
}

var negativeWords = []string{
	"hate", "terrible", "awful", "worst", "scam", "broken", "useless",
	"disappointed", "angry", "refund", "garbage", "horrible", "avoid",
	"waste", "never again",
}

var urgentWords = []string{
	"lawsuit", "lawyer", "sue", "fraud", "report", "unacceptable",
}

// lexicalScore is the deterministic fallback: the balance of positive
// and negative marker words, with urgent markers pulling hard negative.
func lexicalScore(text string) float64 {
	lower := strings.ToLower(text)

	pos := countMarkers(lower, positiveWords)
	neg := countMarkers(lower, negativeWords)
	urgent := countMarkers(lower, urgentWords)

	var score float64
	if pos+neg > 0 {
		score = float64(pos-neg) / float64(pos+neg)
	}
	score -= 0.3 * float64(urgent)
	return clamp(score)
}

func countMarkers(text string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(text, m)
	}
	return n
}

// truncate cuts s to at most max bytes, backing up so a multi-byte
// rune is never split at the cut point.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
