package respond

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/llm"
)

// Generator drafts replies to matched content. Unlike sentiment
// scoring there is no safe fallback: a failed generation fails the
// engagement attempt for that match.
type Generator struct {
	provider llm.Provider
}

// NewGenerator creates a Generator. provider may be nil, in which case
// every Generate call errors.
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

// Generate drafts a reply for the match using the campaign's business
// context and engagement configuration.
func (g *Generator) Generate(ctx context.Context, campaign *database.Campaign, match *database.Match) (string, error) {
	if g.provider == nil {
		return "", fmt.Errorf("no llm provider configured")
	}

	system := buildSystemPrompt(campaign)
	user := buildUserPrompt(match)

	response, err := g.provider.Complete(ctx, system, user, tokenBudget(campaign.Engagement.MaxResponseLength))
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}

	reply := cleanReply(response)
	if reply == "" {
		return "", fmt.Errorf("llm returned an empty response")
	}
	return reply, nil
}

func buildSystemPrompt(c *database.Campaign) string {
	cfg := c.Engagement

	var b strings.Builder
	fmt.Fprintf(&b, "You reply to social media posts on behalf of %s.\n", c.BusinessName)
	if c.BusinessDescription != "" {
		fmt.Fprintf(&b, "About the business: %s\n", c.BusinessDescription)
	}
	fmt.Fprintf(&b, "\nTone: %s. Style: %s.\n", cfg.Personality, cfg.ResponseStyle)
	fmt.Fprintf(&b, "Keep the reply under %d characters.\n", cfg.MaxResponseLength)

	if cfg.IncludeCTA {
		b.WriteString("End with a soft call to action inviting the author to learn more.\n")
	} else {
		b.WriteString("Do not pitch or add a call to action; be genuinely helpful.\n")
	}
	if cfg.CustomInstructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", cfg.CustomInstructions)
	}

	b.WriteString("\nWrite like a real person, not a press release. Never mention being automated. Respond with the reply text only.")
	return b.String()
}

func buildUserPrompt(m *database.Match) string {
	content := m.Content
	if len(content) > 2000 {
		content = truncate(content, 2000) + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Post on %s", m.Platform)
	if m.AuthorName != "" {
		fmt.Fprintf(&b, " by %s", m.AuthorName)
	}
	b.WriteString(":\n")
	b.WriteString(content)
	if len(m.Keywords) > 0 {
		fmt.Fprintf(&b, "\n\nMatched keywords: %s", strings.Join(m.Keywords, ", "))
	}
	b.WriteString("\n\nWrite the reply.")
	return b.String()
}

// tokenBudget derives a completion budget from the character limit,
// roughly three characters per token, bounded to something sane.
func tokenBudget(maxChars int) int {
	tokens := maxChars / 3
	if tokens < 64 {
		return 64
	}
	if tokens > 512 {
		return 512
	}
	return tokens
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

// cleanReply trims whitespace and the quote marks models like to wrap
// replies in.
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
